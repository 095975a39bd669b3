package civ

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

// GoalStatus is the goal state machine: active → completed | abandoned.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalAbandoned GoalStatus = "abandoned"
)

// GoalStep is one concrete step toward a goal.
type GoalStep struct {
	Action      string
	Description string
	Completed   bool
}

// Goal is an objective an agent pursues on its own, independent of any
// player interaction.
type Goal struct {
	ID          string
	AgentID     string
	Type        string
	Description string
	Target      string
	Priority    float64
	Progress    float64
	Status      GoalStatus
	CreatedAt   time.Time
	Deadline    time.Time
	RewardGold  int
	RewardRep   float64
	Steps       []GoalStep
}

type goalTemplate struct {
	descriptions []string
	targets      []string
	suitableFor  []string
	basePriority float64
	steps        []GoalStep
}

var goalTemplates = map[string]goalTemplate{
	"trade": {
		descriptions: []string{
			"Establish trade connection with %s",
			"Negotiate better prices with %s",
			"Find new customers for my goods",
		},
		targets:      []string{"the merchant guild", "northern traders", "a new supplier", "the docks"},
		suitableFor:  []string{"traders", "citizens"},
		basePriority: 0.6,
		steps: []GoalStep{
			{Action: "identify_opportunity", Description: "Find potential trade partners"},
			{Action: "negotiate", Description: "Negotiate terms"},
			{Action: "finalize", Description: "Complete the deal"},
		},
	},
	"hunt": {
		descriptions: []string{
			"Track down %s",
			"Bring %s to justice",
			"Eliminate the threat of %s",
		},
		targets:      []string{"the bandit leader", "a wanted criminal", "the outlaw", "smugglers"},
		suitableFor:  []string{"guards"},
		basePriority: 0.8,
		steps: []GoalStep{
			{Action: "gather_info", Description: "Gather information about target"},
			{Action: "track", Description: "Track down the target"},
			{Action: "confront", Description: "Confront and capture"},
		},
	},
	"protect": {
		descriptions: []string{
			"Keep %s safe from harm",
			"Guard %s against threats",
			"Ensure the security of %s",
		},
		targets:      []string{"the city gates", "the merchant quarter", "the citizens", "the trade route"},
		suitableFor:  []string{"guards", "citizens"},
		basePriority: 0.7,
		steps: []GoalStep{
			{Action: "assess_threat", Description: "Assess potential threats"},
			{Action: "fortify", Description: "Strengthen defenses"},
			{Action: "patrol", Description: "Maintain vigilance"},
		},
	},
	"revenge": {
		descriptions: []string{
			"Get revenge on %s",
			"Make %s pay for what they did",
			"Settle the score with %s",
		},
		targets:      []string{"those who wronged me", "the betrayer", "my enemy", "the one responsible"},
		suitableFor:  []string{"outcasts", "citizens"},
		basePriority: 0.9,
		steps: []GoalStep{
			{Action: "plan", Description: "Plan the revenge"},
			{Action: "prepare", Description: "Gather resources needed"},
			{Action: "execute", Description: "Execute the plan"},
		},
	},
	"acquire": {
		descriptions: []string{
			"Obtain %s",
			"Secure %s for myself",
			"Find a way to get %s",
		},
		targets:      []string{"rare goods", "valuable information", "weapons", "resources"},
		suitableFor:  []string{"traders", "outcasts"},
		basePriority: 0.5,
		steps:        genericGoalSteps,
	},
	"socialize": {
		descriptions: []string{
			"Build friendship with %s",
			"Gain the trust of %s",
			"Form an alliance with %s",
		},
		targets:      []string{"influential people", "potential allies", "the guild master", "newcomers"},
		suitableFor:  []string{"traders", "citizens"},
		basePriority: 0.4,
		steps:        genericGoalSteps,
	},
	"survive": {
		descriptions: []string{
			"Find food and shelter",
			"Avoid %s",
			"Stay alive another day",
		},
		targets:      []string{"the authorities", "my enemies", "starvation", "danger"},
		suitableFor:  []string{"outcasts", "citizens"},
		basePriority: 0.95,
		steps:        genericGoalSteps,
	},
	"territory": {
		descriptions: []string{
			"Expand control to %s",
			"Defend %s from rivals",
			"Reclaim %s for our faction",
		},
		targets:      []string{"the northern district", "the market square", "the old quarter", "the docks"},
		suitableFor:  []string{"guards", "outcasts"},
		basePriority: 0.75,
		steps: []GoalStep{
			{Action: "scout", Description: "Scout the territory"},
			{Action: "mobilize", Description: "Mobilize forces"},
			{Action: "claim", Description: "Claim or defend the territory"},
		},
	},
}

var genericGoalSteps = []GoalStep{
	{Action: "start", Description: "Begin working on goal"},
	{Action: "progress", Description: "Make progress"},
	{Action: "complete", Description: "Complete the goal"},
}

// Goals manages the autonomous goal registry.
type Goals struct {
	logger *slog.Logger

	mu    sync.RWMutex
	goals map[string]Goal
	rng   *rand.Rand
}

// GoalsOption configures a [Goals] registry.
type GoalsOption func(*Goals)

// WithGoalsRand injects a seeded random source.
func WithGoalsRand(rng *rand.Rand) GoalsOption {
	return func(g *Goals) {
		if rng != nil {
			g.rng = rng
		}
	}
}

// WithGoalsLogger sets the registry logger.
func WithGoalsLogger(l *slog.Logger) GoalsOption {
	return func(g *Goals) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGoals builds an empty goal registry.
func NewGoals(opts ...GoalsOption) *Goals {
	g := &Goals{
		logger: slog.Default(),
		goals:  make(map[string]Goal),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate creates a new active goal for an agent. The goal type is a
// priority-weighted random pick among the types suitable for the agent's
// faction; a faction with no suitable types falls back to bare survival.
func (g *Goals) Generate(agentID, faction string) Goal {
	g.mu.Lock()
	defer g.mu.Unlock()

	goalType, basePriority := g.pickType(faction)
	tmpl := goalTemplates[goalType]

	target := tmpl.targets[g.rng.Intn(len(tmpl.targets))]
	desc := tmpl.descriptions[g.rng.Intn(len(tmpl.descriptions))]
	if strings.Contains(desc, "%s") {
		desc = fmt.Sprintf(desc, target)
	}

	steps := make([]GoalStep, len(tmpl.steps))
	copy(steps, tmpl.steps)

	now := time.Now()
	goal := Goal{
		ID:          uuid.NewString()[:12],
		AgentID:     agentID,
		Type:        goalType,
		Description: desc,
		Target:      target,
		Priority:    memory.Clamp(basePriority+g.rng.Float64()*0.2-0.1, 0, 1),
		Status:      GoalActive,
		CreatedAt:   now,
		Deadline:    now.AddDate(0, 0, 3+g.rng.Intn(12)),
		RewardGold:  20 + g.rng.Intn(81),
		RewardRep:   0.1,
		Steps:       steps,
	}
	g.goals[goal.ID] = goal

	g.logger.Debug("goal generated",
		slog.String("agent_id", agentID),
		slog.String("goal_type", goalType),
		slog.String("goal_id", goal.ID))
	return goal
}

func (g *Goals) pickType(faction string) (string, float64) {
	type candidate struct {
		goalType string
		priority float64
	}
	var suitable []candidate
	for _, goalType := range goalTypeOrder {
		tmpl := goalTemplates[goalType]
		for _, f := range tmpl.suitableFor {
			if f == faction {
				suitable = append(suitable, candidate{goalType, tmpl.basePriority})
				break
			}
		}
	}
	if len(suitable) == 0 {
		return "survive", 0.5
	}

	var total float64
	for _, c := range suitable {
		total += c.priority
	}
	r := g.rng.Float64() * total
	var cumulative float64
	for _, c := range suitable {
		cumulative += c.priority
		if r <= cumulative {
			return c.goalType, c.priority
		}
	}
	return suitable[len(suitable)-1].goalType, suitable[len(suitable)-1].priority
}

// goalTypeOrder fixes iteration order so weighted picks are reproducible
// under a seeded source.
var goalTypeOrder = []string{
	"trade", "hunt", "protect", "revenge",
	"acquire", "socialize", "survive", "territory",
}

// For returns an agent's goals, highest priority first. An empty status
// matches all.
func (g *Goals) For(agentID string, status GoalStatus) []Goal {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Goal
	for _, goal := range g.goals {
		if goal.AgentID != agentID {
			continue
		}
		if status != "" && goal.Status != status {
			continue
		}
		out = append(out, goal)
	}
	sortGoals(out)
	return out
}

func sortGoals(goals []Goal) {
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].Priority > goals[j].Priority
	})
}

// UpdateProgress advances an active goal. Progress clamps to 1; reaching it
// completes the goal. Updates to non-active goals return ErrWrongState.
func (g *Goals) UpdateProgress(goalID string, delta float64) (Goal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	goal, ok := g.goals[goalID]
	if !ok {
		return Goal{}, fmt.Errorf("update goal %s: %w", goalID, memory.ErrNotFound)
	}
	if goal.Status != GoalActive {
		return Goal{}, fmt.Errorf("update goal %s (status %s): %w", goalID, goal.Status, ErrWrongState)
	}

	goal.Progress = math.Min(1, goal.Progress+delta)
	stepsDone := int(goal.Progress * float64(len(goal.Steps)))
	for i := range goal.Steps {
		goal.Steps[i].Completed = i < stepsDone
	}
	if goal.Progress >= 1 {
		goal.Status = GoalCompleted
	}
	g.goals[goalID] = goal
	return goal, nil
}

// Abandon marks a goal abandoned regardless of progress.
func (g *Goals) Abandon(goalID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	goal, ok := g.goals[goalID]
	if !ok {
		return fmt.Errorf("abandon goal %s: %w", goalID, memory.ErrNotFound)
	}
	goal.Status = GoalAbandoned
	g.goals[goalID] = goal
	return nil
}
