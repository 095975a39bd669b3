package civ

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

const questLifetime = 7 * 24 * time.Hour

// ReputationCrediter applies a reputation delta when a quest pays out.
// Satisfied by the social service.
type ReputationCrediter interface {
	ApplyTrust(ctx context.Context, playerID, agentID string, trustMod float64) (memory.ReputationEdge, error)
}

// Quests generates and drives player quests. Generated quests persist
// through the store so accepted work survives a restart.
type Quests struct {
	store  memory.CivStore
	rep    ReputationCrediter
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// QuestsOption configures a [Quests] service.
type QuestsOption func(*Quests)

// WithQuestsRand injects a seeded random source.
func WithQuestsRand(rng *rand.Rand) QuestsOption {
	return func(q *Quests) {
		if rng != nil {
			q.rng = rng
		}
	}
}

// WithQuestsLogger sets the service logger.
func WithQuestsLogger(l *slog.Logger) QuestsOption {
	return func(q *Quests) {
		if l != nil {
			q.logger = l
		}
	}
}

// NewQuests builds the quest service. rep may be nil, in which case
// completion skips the reputation credit.
func NewQuests(store memory.CivStore, rep ReputationCrediter, opts ...QuestsOption) *Quests {
	q := &Quests{
		store:  store,
		rep:    rep,
		logger: slog.Default(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

type questTemplate struct {
	titles  []string
	details []string
}

var questTemplates = map[string]questTemplate{
	"fetch": {
		titles: []string{
			"Retrieve Lost %[1]s",
			"Gather %[1]s from %[2]s",
			"Find and Return %[1]s",
		},
		details: []string{
			"I need someone to retrieve %[1]s from %[2]s. It's important to me.",
			"There's %[1]s out in %[2]s that I desperately need. Can you get it?",
			"I've lost my %[1]s somewhere near %[2]s. Please find it for me.",
		},
	},
	"protect": {
		titles: []string{
			"Guard Duty at %[2]s",
			"Escort to %[2]s",
			"Defend Against %[3]s",
		},
		details: []string{
			"I need protection while traveling to %[2]s. The roads aren't safe.",
			"There have been threats from %[3]s lately. I need someone capable.",
			"Something dangerous lurks near %[2]s. I need someone to handle it.",
		},
	},
	"investigate": {
		titles: []string{
			"Uncover the Truth",
			"Investigate %[2]s",
			"Find Information on %[3]s",
		},
		details: []string{
			"Strange things are happening at %[2]s. I need someone to look into it.",
			"I've heard rumors about %[3]s. Can you find out what's really going on?",
			"There's something suspicious near %[2]s. Investigate discreetly.",
		},
	},
	"revenge": {
		titles: []string{
			"Settle the Score",
			"Hunt Down %[3]s",
			"Justice Must Be Done",
		},
		details: []string{
			"Someone wronged me, and I want justice. Find %[3]s and make them pay.",
			"%[3]s took something precious from me. I want it back, or them punished.",
			"I remember what %[3]s did. Help me get revenge.",
		},
	},
	"trade": {
		titles: []string{
			"Deliver %[1]s",
			"Broker a Deal",
			"Secure Trade Route",
		},
		details: []string{
			"I have %[1]s that needs to reach my contact safely. Interested?",
			"There's profit to be made if you can negotiate on my behalf at %[2]s.",
			"The trade routes have been disrupted. Clear them and there's coin in it for you.",
		},
	},
	"rescue": {
		titles: []string{
			"Rescue Mission to %[2]s",
			"Free the Captive",
			"Bring Them Home",
		},
		details: []string{
			"Someone I care about is trapped in %[2]s. Please help.",
			"They're holding a captive somewhere near %[2]s. Find them before it's too late.",
			"A friend has been taken by %[3]s. I need someone to bring them back.",
		},
	},
}

var (
	questItems = []string{
		"supplies", "medicine", "weapons", "gold", "documents",
		"an artifact", "tools", "food", "water",
	}
	questLocations = []string{
		"the northern pass", "the old ruins", "the docks",
		"the forest edge", "the abandoned mine", "the merchant district",
	}
	questThreats = []string{
		"bandits", "wild beasts", "raiders", "unknown assailants", "a rival faction",
	}
	questDifficulties = []string{"easy", "medium", "hard"}

	questGoldByDifficulty = map[string]int{"easy": 50, "medium": 100, "hard": 200}
	questRepByDifficulty  = map[string]float64{"easy": 0.05, "medium": 0.1, "hard": 0.2}
)

// questContextLines personalise the quest pitch from what the agent
// remembers about the player.
var questContextLines = map[memory.TopicCategory]string{
	memory.CategoryCrime:      " I know you have... experience with this sort of thing. That's why I'm asking you.",
	memory.CategorySecret:     " You've trusted me before. Now I'm trusting you with this.",
	memory.CategoryFamily:     " I remember what you told me about your family. This might be personal for you.",
	memory.CategoryGoal:       " This aligns with what you've been looking for, doesn't it?",
	memory.CategoryProfession: " Your skills make you perfect for this task.",
}

// Generate builds a quest from what the agent remembers about the player.
// Topic categories steer the quest type: crime and secrets invite
// investigation or revenge, family invites rescue, stated goals invite
// errands. The quest starts available and expires a week out.
func (q *Quests) Generate(ctx context.Context, agentID, playerID string, topics []memory.Topic) (memory.Quest, error) {
	q.mu.Lock()

	questType := q.questTypeFor(topics)
	tmpl := questTemplates[questType]

	item := questItems[q.rng.Intn(len(questItems))]
	location := questLocations[q.rng.Intn(len(questLocations))]
	threat := questThreats[q.rng.Intn(len(questThreats))]

	title := fillTemplate(tmpl.titles[q.rng.Intn(len(tmpl.titles))], item, location, threat)
	details := fillTemplate(tmpl.details[q.rng.Intn(len(tmpl.details))], item, location, threat)
	details += contextLine(topics)

	difficulty := questDifficulties[q.rng.Intn(len(questDifficulties))]
	q.mu.Unlock()

	now := time.Now()
	quest := memory.Quest{
		ID:         uuid.NewString()[:12],
		AgentID:    agentID,
		PlayerID:   playerID,
		Type:       questType,
		Title:      strings.TrimSpace(title),
		Details:    details,
		Difficulty: difficulty,
		RewardGold: questGoldByDifficulty[difficulty],
		RewardRep:  questRepByDifficulty[difficulty],
		Status:     memory.QuestAvailable,
		CreatedAt:  now,
		ExpiresAt:  now.Add(questLifetime),
	}
	if difficulty == "hard" {
		quest.RewardItem = "random_item"
	}

	if err := q.store.SaveQuest(ctx, quest); err != nil {
		return memory.Quest{}, fmt.Errorf("generate quest: %w", err)
	}
	q.logger.Debug("quest generated",
		slog.String("agent_id", agentID),
		slog.String("quest_id", quest.ID),
		slog.String("quest_type", questType),
		slog.String("difficulty", difficulty))
	return quest, nil
}

// fillTemplate substitutes the indexed placeholders. Templates without
// placeholders pass through untouched so fmt never reports unused arguments.
func fillTemplate(tmpl, item, location, threat string) string {
	if !strings.Contains(tmpl, "%") {
		return tmpl
	}
	return fmt.Sprintf(tmpl, item, location, threat)
}

func (q *Quests) questTypeFor(topics []memory.Topic) string {
	seen := make(map[memory.TopicCategory]bool, len(topics))
	for _, t := range topics {
		seen[t.Category] = true
	}

	pick := func(types ...string) string { return types[q.rng.Intn(len(types))] }
	switch {
	case seen[memory.CategoryCrime] || seen[memory.CategorySecret]:
		return pick("investigate", "revenge")
	case seen[memory.CategoryFamily]:
		return pick("rescue", "protect")
	case seen[memory.CategoryGoal]:
		return pick("fetch", "trade")
	case seen[memory.CategoryFear]:
		return pick("protect", "investigate")
	default:
		return pick("fetch", "trade", "protect")
	}
}

func contextLine(topics []memory.Topic) string {
	var top memory.Topic
	for _, t := range topics {
		if t.EmotionalWeight > top.EmotionalWeight {
			top = t
		}
	}
	return questContextLines[top.Category]
}

// Accept moves an available quest to active and binds the player. The
// read-modify-write is serialised on the service mutex.
func (q *Quests) Accept(ctx context.Context, questID, playerID string) (memory.Quest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	quest, err := q.store.Quest(ctx, questID)
	if err != nil {
		return memory.Quest{}, fmt.Errorf("accept quest %s: %w", questID, err)
	}
	if quest.Status != memory.QuestAvailable {
		return memory.Quest{}, fmt.Errorf("accept quest %s (status %s): %w", questID, quest.Status, ErrWrongState)
	}

	quest.Status = memory.QuestActive
	quest.PlayerID = playerID
	if err := q.store.SaveQuest(ctx, quest); err != nil {
		return memory.Quest{}, fmt.Errorf("accept quest %s: %w", questID, err)
	}
	return quest, nil
}

// Complete marks an active quest completed and credits the reputation
// reward to the bound player.
func (q *Quests) Complete(ctx context.Context, questID string) (memory.Quest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	quest, err := q.store.Quest(ctx, questID)
	if err != nil {
		return memory.Quest{}, fmt.Errorf("complete quest %s: %w", questID, err)
	}
	if quest.Status != memory.QuestActive {
		return memory.Quest{}, fmt.Errorf("complete quest %s (status %s): %w", questID, quest.Status, ErrWrongState)
	}

	quest.Status = memory.QuestCompleted
	if err := q.store.SaveQuest(ctx, quest); err != nil {
		return memory.Quest{}, fmt.Errorf("complete quest %s: %w", questID, err)
	}

	if q.rep != nil && quest.PlayerID != "" && quest.RewardRep > 0 {
		if _, err := q.rep.ApplyTrust(ctx, quest.PlayerID, quest.AgentID, quest.RewardRep); err != nil {
			q.logger.Warn("quest reputation credit failed",
				slog.String("quest_id", questID), slog.Any("error", err))
		}
	}
	return quest, nil
}

// Available lists an agent's open quests.
func (q *Quests) Available(ctx context.Context, agentID string) ([]memory.Quest, error) {
	return q.store.QuestsByAgent(ctx, agentID, memory.QuestAvailable)
}

// ForPlayer lists the quests a player has accepted.
func (q *Quests) ForPlayer(ctx context.Context, playerID string, status memory.QuestStatus) ([]memory.Quest, error) {
	return q.store.QuestsByPlayer(ctx, playerID, status)
}

// Expire sweeps available quests past their deadline.
func (q *Quests) Expire(ctx context.Context, now time.Time) (int64, error) {
	n, err := q.store.ExpireQuests(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("expire quests: %w", err)
	}
	if n > 0 {
		q.logger.Debug("quests expired", slog.Int64("count", n))
	}
	return n, nil
}
