package memory

import "time"

// Kind classifies a stored memory.
type Kind string

const (
	// KindEpisodic records something that happened to the agent.
	KindEpisodic Kind = "episodic"

	// KindSocial records something about another agent or a trust change.
	KindSocial Kind = "social"

	// KindBelief is a reflective summary distilled from other memories.
	KindBelief Kind = "belief"
)

// IsValid reports whether k is a recognised memory kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindEpisodic, KindSocial, KindBelief:
		return true
	}
	return false
}

// Memory is one entry in an agent's episodic store. Append-mostly; Strength
// is the only field updated after insert (by decay).
type Memory struct {
	ID        int64     `db:"id"`
	AgentID   string    `db:"agent_id"`
	Kind      Kind      `db:"kind"`
	Content   string    `db:"content"`
	Strength  float64   `db:"strength"`
	CreatedAt time.Time `db:"created_at"`
}

// Belief is a reflective one-sentence summary an agent holds about the world,
// ranked by strength.
type Belief struct {
	ID        int64     `db:"id"`
	AgentID   string    `db:"agent_id"`
	Content   string    `db:"content"`
	Strength  float64   `db:"strength"`
	CreatedAt time.Time `db:"created_at"`
}

// TraitDelta is one entry in the append-only trait ledger. Result is the
// trait value after the soft-clamp was applied, always in [0.05, 0.95].
type TraitDelta struct {
	ID        int64     `db:"id"`
	AgentID   string    `db:"agent_id"`
	Trait     string    `db:"trait"`
	Delta     float64   `db:"delta"`
	Reason    string    `db:"reason"`
	Result    float64   `db:"result"`
	CreatedAt time.Time `db:"created_at"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Topics
// ─────────────────────────────────────────────────────────────────────────────

// TopicCategory classifies a conversation topic by keyword family.
type TopicCategory string

const (
	CategoryFamily     TopicCategory = "family"
	CategoryGoal       TopicCategory = "goal"
	CategoryFear       TopicCategory = "fear"
	CategoryEvent      TopicCategory = "event"
	CategoryPreference TopicCategory = "preference"
	CategorySecret     TopicCategory = "secret"
	CategoryOrigin     TopicCategory = "origin"
	CategoryProfession TopicCategory = "profession"
	CategoryCrime      TopicCategory = "crime"
)

// TopicCategories lists every category in a stable order.
var TopicCategories = []TopicCategory{
	CategoryFamily, CategoryGoal, CategoryFear, CategoryEvent,
	CategoryPreference, CategorySecret, CategoryOrigin,
	CategoryProfession, CategoryCrime,
}

// IsValid reports whether c is a recognised topic category.
func (c TopicCategory) IsValid() bool {
	for _, k := range TopicCategories {
		if c == k {
			return true
		}
	}
	return false
}

// Topic is one remembered conversation theme between a player and an agent.
// (AgentID, PlayerID, Category, Content) is the natural key: re-extracting
// identical content reinforces the existing row instead of duplicating it.
//
// Strength decays with time at DecayRate scaled by emotional weight; any
// mention by the owning agent resets it to 1 and bumps RefCount.
type Topic struct {
	ID              int64         `db:"id"`
	PlayerID        string        `db:"player_id"`
	AgentID         string        `db:"agent_id"`
	Category        TopicCategory `db:"category"`
	Content         string        `db:"content"`
	EmotionalWeight float64       `db:"emotional_weight"`
	Keywords        string        `db:"keywords"` // comma-joined matched keywords
	RefCount        int           `db:"ref_count"`
	Strength        float64       `db:"memory_strength"`
	DecayRate       float64       `db:"decay_rate"`
	CreatedAt       time.Time     `db:"created_at"`
	LastReinforced  time.Time     `db:"last_reinforced"`
}

// SharedTopic is a topic re-told from one agent to another. It carries its
// own strength (decaying faster than direct topics) and a trust factor that
// scales its credibility when injected into prompts.
type SharedTopic struct {
	ID            int64     `db:"id"`
	FromAgent     string    `db:"from_agent"`
	ToAgent       string    `db:"to_agent"`
	SourceTopicID int64     `db:"source_topic_id"`
	PlayerID      string    `db:"player_id"`
	Content       string    `db:"content"`
	Weight        float64   `db:"weight"`
	TrustFactor   float64   `db:"trust_factor"`
	Strength      float64   `db:"strength"`
	CreatedAt     time.Time `db:"created_at"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Players, reputation, rumors, relations
// ─────────────────────────────────────────────────────────────────────────────

// Player is a player session record. GlobalReputation is maintained as the
// arithmetic mean of the player's per-agent reputation edges whenever any
// edge exists.
type Player struct {
	ID               string    `db:"player_id"`
	Name             string    `db:"player_name"`
	FirstSeen        time.Time `db:"first_seen"`
	LastSeen         time.Time `db:"last_seen"`
	Interactions     int       `db:"total_interactions"`
	GlobalReputation float64   `db:"global_reputation"`
}

// ReputationEdge is the (player, agent) reputation pair, clamped to [-1, 1].
type ReputationEdge struct {
	PlayerID        string    `db:"player_id"`
	AgentID         string    `db:"agent_id"`
	Score           float64   `db:"reputation"`
	Interactions    int       `db:"interaction_count"`
	LastInteraction time.Time `db:"last_interaction"`
}

// ActionRecord is one row of the interaction log.
type ActionRecord struct {
	ID        int64     `db:"id"`
	PlayerID  string    `db:"player_id"`
	AgentID   string    `db:"agent_id"`
	Action    string    `db:"action"`
	Response  string    `db:"response"`
	RepDelta  float64   `db:"reputation_delta"`
	CreatedAt time.Time `db:"created_at"`
}

// Rumor is a piece of gossip about a player, authored by an agent.
type Rumor struct {
	ID           string    `db:"rumor_id"`
	AboutPlayer  string    `db:"about_player"`
	Content      string    `db:"content"`
	Truthfulness float64   `db:"truthfulness"`
	SpreadCount  int       `db:"spread_count"`
	AuthorAgent  string    `db:"created_by"`
	CreatedAt    time.Time `db:"created_at"`
}

// RumorKnowledge records that an agent has heard a rumor and how much it
// believes it. (AgentID, RumorID) is unique; re-spreading is a no-op.
type RumorKnowledge struct {
	AgentID   string    `db:"agent_id"`
	RumorID   string    `db:"rumor_id"`
	Belief    float64   `db:"belief_level"`
	HeardFrom string    `db:"heard_from"`
	HeardAt   time.Time `db:"heard_at"`
}

// Relation is the inter-agent relationship edge. Reads are
// direction-insensitive; the store normalises the pair order on write.
type Relation struct {
	AgentA            string    `db:"agent_a"`
	AgentB            string    `db:"agent_b"`
	Score             float64   `db:"score"`
	SharedExperiences int       `db:"shared_experiences"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Label returns the relation label for the edge's current score.
func (r Relation) Label() string {
	return RelationLabel(r.Score)
}

// RelationLabel maps a relation score in [0, 1] onto its half-open bucket:
// hostile < 0.2 ≤ unfriendly < 0.4 ≤ neutral < 0.6 ≤ friendly < 0.8 ≤ allied.
func RelationLabel(score float64) string {
	switch {
	case score < 0.2:
		return "hostile"
	case score < 0.4:
		return "unfriendly"
	case score < 0.6:
		return "neutral"
	case score < 0.8:
		return "friendly"
	default:
		return "allied"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Quests (persisted civ state)
// ─────────────────────────────────────────────────────────────────────────────

// QuestStatus is the quest state machine:
// available → active → completed | failed, available → expired.
type QuestStatus string

const (
	QuestAvailable QuestStatus = "available"
	QuestActive    QuestStatus = "active"
	QuestCompleted QuestStatus = "completed"
	QuestFailed    QuestStatus = "failed"
	QuestExpired   QuestStatus = "expired"
)

// AgentAggregate is the per-agent rollup the scaling layer fetches in bulk:
// memory and topic volume, mean topic strength, and relation fan-out.
type AgentAggregate struct {
	AgentID          string  `db:"agent_id"`
	MemoryCount      int     `db:"memory_count"`
	TopicCount       int     `db:"topic_count"`
	AvgTopicStrength float64 `db:"avg_topic_strength"`
	RelationCount    int     `db:"relation_count"`
}

// Quest is a generated quest bound to the agent that offers it and,
// once accepted, to a player.
type Quest struct {
	ID         string      `db:"quest_id"`
	AgentID    string      `db:"agent_id"`
	PlayerID   string      `db:"player_id"` // empty until accepted
	Type       string      `db:"quest_type"`
	Title      string      `db:"title"`
	Details    string      `db:"details"`
	Difficulty string      `db:"difficulty"`
	RewardGold int         `db:"reward_gold"`
	RewardRep  float64     `db:"reward_reputation"`
	RewardItem string      `db:"reward_item"`
	Status     QuestStatus `db:"status"`
	CreatedAt  time.Time   `db:"created_at"`
	ExpiresAt  time.Time   `db:"expires_at"`
}
