// Package memory defines the persistence contracts of the NPC runtime: the
// per-agent memory vault, the topic memory system, the social graph
// (players, reputation, rumors, relations), and persisted civilisation state.
//
// Implementations live in subpackages (sqlite for production, mock for
// tests). Callers depend on the interfaces here, never on a concrete store.
package memory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("memory: not found")

// ErrAlreadyShared is returned when a topic share targets an agent that
// already received that source topic.
var ErrAlreadyShared = errors.New("memory: topic already shared")

// ErrAlreadyHeard is returned when a rumor spread targets an agent that has
// already heard that rumor.
var ErrAlreadyHeard = errors.New("memory: rumor already heard")

// Vault stores an agent's private memories, beliefs, and trait ledger.
type Vault interface {
	// AppendMemory inserts a memory and returns it with ID and CreatedAt set.
	AppendMemory(ctx context.Context, m Memory) (Memory, error)

	// RecentMemories returns the agent's newest memories, newest first,
	// limited to limit rows.
	RecentMemories(ctx context.Context, agentID string, limit int) ([]Memory, error)

	// MemoriesByKind returns the agent's newest memories of one kind.
	MemoriesByKind(ctx context.Context, agentID string, kind Kind, limit int) ([]Memory, error)

	// UpsertBelief inserts a belief or, if the agent already holds a belief
	// with identical content, reinforces it to the higher strength.
	UpsertBelief(ctx context.Context, b Belief) (Belief, error)

	// Beliefs returns the agent's beliefs ordered by strength descending.
	Beliefs(ctx context.Context, agentID string, limit int) ([]Belief, error)

	// AppendTraitDelta records one trait ledger entry. Result must already be
	// soft-clamped by the caller; the store is a faithful log.
	AppendTraitDelta(ctx context.Context, d TraitDelta) (TraitDelta, error)

	// TraitHistory returns the ledger for one agent trait, oldest first.
	TraitHistory(ctx context.Context, agentID, trait string, limit int) ([]TraitDelta, error)
}

// TopicStore persists per-player conversation topics and inter-agent shares.
type TopicStore interface {
	// UpsertTopic inserts a topic or, when (agent, player, category, content)
	// already exists, reinforces the existing row: strength back to 1,
	// ref_count incremented, last_reinforced updated. Returns the stored row.
	UpsertTopic(ctx context.Context, t Topic) (Topic, error)

	// TopicsForPlayer returns an agent's direct topics about a player with
	// strength at or above minStrength, strongest first.
	TopicsForPlayer(ctx context.Context, agentID, playerID string, minStrength float64, limit int) ([]Topic, error)

	// TopicsByAgent returns an agent's direct topics across all players with
	// emotional weight at or above minWeight, heaviest first. Used to pick
	// gossip-worthy material when no player is in scope.
	TopicsByAgent(ctx context.Context, agentID string, minWeight float64, limit int) ([]Topic, error)

	// TopicByID fetches a single topic row.
	TopicByID(ctx context.Context, id int64) (Topic, error)

	// ReinforceTopic resets a topic's strength to 1, bumps ref_count, and
	// stamps last_reinforced.
	ReinforceTopic(ctx context.Context, id int64) error

	// DecayTopics applies time decay to every direct topic:
	// strength -= decay_rate * (elapsed_hours/24) * (1.1 - emotional_weight),
	// floored at 0. Returns the number of rows touched.
	DecayTopics(ctx context.Context, elapsed time.Duration) (int64, error)

	// DecaySharedTopics applies the flat 0.08-per-day decay to shared topics.
	DecaySharedTopics(ctx context.Context, elapsed time.Duration) (int64, error)

	// CleanupWeakTopics deletes direct and shared topics whose strength fell
	// below threshold. Returns rows deleted.
	CleanupWeakTopics(ctx context.Context, threshold float64) (int64, error)

	// ShareTopic records a topic re-told from one agent to another. Returns
	// ErrAlreadyShared when the target already received the source topic.
	ShareTopic(ctx context.Context, s SharedTopic) (SharedTopic, error)

	// SharedTopicsFor returns topics an agent has heard about a player,
	// strongest first.
	SharedTopicsFor(ctx context.Context, agentID, playerID string, limit int) ([]SharedTopic, error)
}

// SocialStore persists the player-facing social graph and inter-agent
// relations.
type SocialStore interface {
	// TouchPlayer creates the player row on first contact and updates
	// last_seen and the interaction counter on every call. playerName is
	// recorded only at creation; existing names are never overwritten.
	TouchPlayer(ctx context.Context, playerID, playerName string) (Player, error)

	// Player fetches a player record.
	Player(ctx context.Context, playerID string) (Player, error)

	// AdjustReputation applies delta to the (player, agent) edge, clamps the
	// result to [-1, 1], recomputes the player's global reputation as the
	// mean of all their edges, and returns the updated edge.
	AdjustReputation(ctx context.Context, playerID, agentID string, delta float64) (ReputationEdge, error)

	// Reputation fetches one edge. Returns ErrNotFound when the pair has
	// never interacted.
	Reputation(ctx context.Context, playerID, agentID string) (ReputationEdge, error)

	// ReputationEdges returns all of a player's edges.
	ReputationEdges(ctx context.Context, playerID string) ([]ReputationEdge, error)

	// Players returns a page of player records ordered by last_seen
	// descending, plus the total row count for pagination.
	Players(ctx context.Context, limit, offset int) ([]Player, int64, error)

	// LogAction appends one interaction log row.
	LogAction(ctx context.Context, a ActionRecord) (ActionRecord, error)

	// RecentActions returns a player's newest logged actions.
	RecentActions(ctx context.Context, playerID string, limit int) ([]ActionRecord, error)

	// CreateRumor stores a new rumor and seeds the author's knowledge of it
	// at full belief.
	CreateRumor(ctx context.Context, r Rumor) (Rumor, error)

	// SpreadRumor records that an agent heard a rumor and increments the
	// rumor's spread count. Returns ErrAlreadyHeard on repeats.
	SpreadRumor(ctx context.Context, k RumorKnowledge) error

	// RumorsKnownBy returns the rumors an agent has heard about a player,
	// joined with the agent's belief level. An empty aboutPlayer returns
	// everything the agent knows, across all players.
	RumorsKnownBy(ctx context.Context, agentID, aboutPlayer string) ([]Rumor, []RumorKnowledge, error)

	// UpsertRelation sets or adjusts the relation edge between two agents.
	// The pair is order-insensitive; delta is applied to the current score
	// and clamped to [0, 1]. sharedExperience increments the counter.
	UpsertRelation(ctx context.Context, agentA, agentB string, delta float64, sharedExperience bool) (Relation, error)

	// Relation fetches the edge between two agents in either order.
	Relation(ctx context.Context, agentA, agentB string) (Relation, error)

	// RelationsOf returns every relation edge touching the agent.
	RelationsOf(ctx context.Context, agentID string) ([]Relation, error)
}

// CivStore persists quest state, the only civilisation subsystem whose
// lifecycle must survive a restart.
type CivStore interface {
	// SaveQuest inserts or fully replaces a quest row keyed by quest_id.
	SaveQuest(ctx context.Context, q Quest) error

	// Quest fetches one quest.
	Quest(ctx context.Context, questID string) (Quest, error)

	// QuestsByAgent returns an agent's quests, optionally filtered to one
	// status ("" means all), newest first.
	QuestsByAgent(ctx context.Context, agentID string, status QuestStatus) ([]Quest, error)

	// QuestsByPlayer returns the quests a player has accepted, newest first.
	QuestsByPlayer(ctx context.Context, playerID string, status QuestStatus) ([]Quest, error)

	// Quests returns a page of quests ordered by created_at descending,
	// plus the total row count for pagination.
	Quests(ctx context.Context, limit, offset int) ([]Quest, int64, error)

	// ExpireQuests marks available quests past their deadline as expired.
	// Returns the number of quests expired.
	ExpireQuests(ctx context.Context, now time.Time) (int64, error)
}

// BatchWrite is one deferred write queued by the scaling layer.
type BatchWrite struct {
	Memory     *Memory
	TraitDelta *TraitDelta
	Action     *ActionRecord
}

// BatchOps flushes queued writes in a single transaction and serves the
// bulk reads the scaling layer needs.
type BatchOps interface {
	// FlushBatch applies every queued write atomically. A failure rolls back
	// the whole batch.
	FlushBatch(ctx context.Context, writes []BatchWrite) error

	// AgentAggregates returns per-agent rollups for every requested agent in
	// one round trip. Agents with no data come back as zero-value rollups.
	AgentAggregates(ctx context.Context, agentIDs []string) (map[string]AgentAggregate, error)
}

// Store aggregates every persistence concern behind one handle.
type Store interface {
	Vault
	TopicStore
	SocialStore
	CivStore
	BatchOps

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Analyze refreshes query planner statistics. Stores without a planner
	// treat this as a no-op.
	Analyze(ctx context.Context) error

	// Close releases the underlying database handle.
	Close() error
}
