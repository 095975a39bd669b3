package civ

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

// ChainStatus is the chain state machine:
// available → in_progress → completed.
type ChainStatus string

const (
	ChainAvailable  ChainStatus = "available"
	ChainInProgress ChainStatus = "in_progress"
	ChainCompleted  ChainStatus = "completed"
)

// Chain is a multi-stage storyline authored by one agent and, once started,
// bound to one player.
type Chain struct {
	ID          string
	Name        string
	Description string
	Stages      []string
	Cursor      int
	Status      ChainStatus
	PlayerID    string
	AgentID     string
	RewardGold  int
	RewardRep   float64
	RewardItem  string
	CreatedAt   time.Time
}

// CurrentStage returns the stage the chain is on, "" once completed.
func (c Chain) CurrentStage() string {
	if c.Cursor >= len(c.Stages) {
		return ""
	}
	return c.Stages[c.Cursor]
}

type chainTemplate struct {
	name        string
	description string
	stages      []string
	faction     string
}

var chainTemplates = map[string]chainTemplate{
	"merchant_opportunity": {
		name:        "The Trade Route",
		description: "Help establish a profitable trade route",
		stages:      []string{"scout_route", "clear_dangers", "negotiate_terms", "first_delivery"},
		faction:     "traders",
	},
	"bandit_hunt": {
		name:        "Hunting the Outlaws",
		description: "Track down and eliminate a bandit threat",
		stages:      []string{"gather_intel", "track_hideout", "assault_camp", "capture_leader"},
		faction:     "guards",
	},
	"rebellion": {
		name:        "Spark of Rebellion",
		description: "Help the outcasts fight back against oppression",
		stages:      []string{"recruit_allies", "gather_supplies", "sabotage", "uprising"},
		faction:     "outcasts",
	},
	"mystery": {
		name:        "The Dark Secret",
		description: "Uncover a conspiracy threatening the city",
		stages:      []string{"find_clues", "interrogate_witness", "infiltrate", "expose_truth"},
		faction:     "citizens",
	},
}

// chainTemplateOrder fixes pick order under a seeded source.
var chainTemplateOrder = []string{"merchant_opportunity", "bandit_hunt", "rebellion", "mystery"}

// Chains manages storyline chains in a runtime registry.
type Chains struct {
	logger *slog.Logger

	mu     sync.RWMutex
	chains map[string]Chain
	rng    *rand.Rand
}

// ChainsOption configures a [Chains] registry.
type ChainsOption func(*Chains)

// WithChainsRand injects a seeded random source.
func WithChainsRand(rng *rand.Rand) ChainsOption {
	return func(c *Chains) {
		if rng != nil {
			c.rng = rng
		}
	}
}

// WithChainsLogger sets the registry logger.
func WithChainsLogger(l *slog.Logger) ChainsOption {
	return func(c *Chains) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChains builds an empty chain registry.
func NewChains(opts ...ChainsOption) *Chains {
	c := &Chains{
		logger: slog.Default(),
		chains: make(map[string]Chain),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create authors a new chain from the template matching the agent's faction.
// A faction with no template draws from the full set. playerID may be empty;
// the chain then stays open to any player.
func (c *Chains) Create(agentID, faction, playerID string) Chain {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for _, k := range chainTemplateOrder {
		if chainTemplates[k].faction == faction {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		keys = chainTemplateOrder
	}
	key := keys[c.rng.Intn(len(keys))]
	tmpl := chainTemplates[key]

	stages := make([]string, len(tmpl.stages))
	copy(stages, tmpl.stages)

	chain := Chain{
		ID:          uuid.NewString()[:12],
		Name:        tmpl.name,
		Description: tmpl.description,
		Stages:      stages,
		Status:      ChainAvailable,
		PlayerID:    playerID,
		AgentID:     agentID,
		RewardGold:  200 + c.rng.Intn(301),
		RewardRep:   0.3,
		RewardItem:  "reward_" + key,
		CreatedAt:   time.Now(),
	}
	c.chains[chain.ID] = chain

	c.logger.Debug("chain created",
		slog.String("agent_id", agentID),
		slog.String("chain_id", chain.ID),
		slog.String("template", key))
	return chain
}

// Get fetches one chain.
func (c *Chains) Get(chainID string) (Chain, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	chain, ok := c.chains[chainID]
	if !ok {
		return Chain{}, fmt.Errorf("chain %s: %w", chainID, memory.ErrNotFound)
	}
	return chain, nil
}

// Available lists chains a player could start or is running: unbound
// available chains plus the player's own, newest first.
func (c *Chains) Available(playerID string) []Chain {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Chain
	for _, chain := range c.chains {
		switch {
		case chain.Status == ChainAvailable && (chain.PlayerID == "" || chain.PlayerID == playerID):
			out = append(out, chain)
		case playerID != "" && chain.Status == ChainInProgress && chain.PlayerID == playerID:
			out = append(out, chain)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Start binds a player to an available chain and returns it positioned on
// the first stage.
func (c *Chains) Start(chainID, playerID string) (Chain, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chain, ok := c.chains[chainID]
	if !ok {
		return Chain{}, fmt.Errorf("start chain %s: %w", chainID, memory.ErrNotFound)
	}
	if chain.Status != ChainAvailable {
		return Chain{}, fmt.Errorf("start chain %s (status %s): %w", chainID, chain.Status, ErrWrongState)
	}

	chain.Status = ChainInProgress
	chain.PlayerID = playerID
	c.chains[chainID] = chain
	return chain, nil
}

// Advance moves an in-progress chain to its next stage; advancing past the
// last stage completes it.
func (c *Chains) Advance(chainID string) (Chain, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chain, ok := c.chains[chainID]
	if !ok {
		return Chain{}, fmt.Errorf("advance chain %s: %w", chainID, memory.ErrNotFound)
	}
	if chain.Status != ChainInProgress {
		return Chain{}, fmt.Errorf("advance chain %s (status %s): %w", chainID, chain.Status, ErrWrongState)
	}

	chain.Cursor++
	if chain.Cursor >= len(chain.Stages) {
		chain.Status = ChainCompleted
	}
	c.chains[chainID] = chain
	return chain, nil
}
