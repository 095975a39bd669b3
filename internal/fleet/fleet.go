// Package fleet coordinates the NPC population: agent registration and
// lifecycle, the faction trust matrix, agent-to-agent and player-to-agent
// interaction pipelines, and the world simulator that advances gossip, quests,
// trade, and memory decay in the background.
//
// The coordinator is the single composition point for the social subsystems:
// topic memory, the rumor mill, and the relationship graph never call each
// other; a gossip step is assembled here from their pure operations.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/duskfolk/duskfolk/internal/agent"
	"github.com/duskfolk/duskfolk/internal/civ"
	"github.com/duskfolk/duskfolk/internal/mind"
	"github.com/duskfolk/duskfolk/internal/persona"
	"github.com/duskfolk/duskfolk/internal/scale"
	"github.com/duskfolk/duskfolk/internal/social"
	"github.com/duskfolk/duskfolk/internal/topics"
	"github.com/duskfolk/duskfolk/pkg/memory"
)

const (
	// Initial pairwise trust seeded at registration.
	sameFactionTrust  = 0.6
	crossFactionTrust = 0.3

	// defaultTrust is returned for pairs with no seeded or adjusted value.
	defaultTrust = 0.5

	// trustMemoryThreshold is the |delta| above which a trust change is
	// significant enough to leave a social memory on the observing agent.
	trustMemoryThreshold = 0.05
)

// ErrAgentNotFound is returned when an operation targets an unregistered
// agent.
var ErrAgentNotFound = errors.New("fleet: agent not found")

// ErrAlreadyRegistered is returned by operations that require a fresh agent
// ID. Register itself reports an existing agent as a status, not an error.
var ErrAlreadyRegistered = errors.New("fleet: agent already registered")

// Deps are the collaborating services the coordinator composes. Every field
// is required except Metrics.
type Deps struct {
	Store     memory.Store
	Engine    *mind.Engine
	Personas  *persona.Registry
	Social    *social.Service
	Topics    *topics.Service
	Quests    *civ.Quests
	Goals     *civ.Goals
	Chains    *civ.Chains
	Trade     *civ.Trade
	Territory *civ.Territory
	Scale     *scale.Manager
}

func (d Deps) validate() error {
	var errs []error
	if d.Store == nil {
		errs = append(errs, errors.New("fleet: Deps.Store is nil"))
	}
	if d.Engine == nil {
		errs = append(errs, errors.New("fleet: Deps.Engine is nil"))
	}
	if d.Personas == nil {
		errs = append(errs, errors.New("fleet: Deps.Personas is nil"))
	}
	if d.Social == nil {
		errs = append(errs, errors.New("fleet: Deps.Social is nil"))
	}
	if d.Topics == nil {
		errs = append(errs, errors.New("fleet: Deps.Topics is nil"))
	}
	if d.Quests == nil {
		errs = append(errs, errors.New("fleet: Deps.Quests is nil"))
	}
	if d.Goals == nil {
		errs = append(errs, errors.New("fleet: Deps.Goals is nil"))
	}
	if d.Chains == nil {
		errs = append(errs, errors.New("fleet: Deps.Chains is nil"))
	}
	if d.Trade == nil {
		errs = append(errs, errors.New("fleet: Deps.Trade is nil"))
	}
	if d.Territory == nil {
		errs = append(errs, errors.New("fleet: Deps.Territory is nil"))
	}
	if d.Scale == nil {
		errs = append(errs, errors.New("fleet: Deps.Scale is nil"))
	}
	return errors.Join(errs...)
}

// entry is one registered agent plus its faction assignment.
type entry struct {
	agent   *agent.Agent
	faction string
}

// Coordinator owns the agent registry, the faction trust matrix, and the
// world simulator. Safe for concurrent use.
type Coordinator struct {
	deps      Deps
	logger    *slog.Logger
	hub       *Hub
	agentOpts []agent.Option

	mu       sync.RWMutex
	agents   map[string]*entry
	factions map[string]map[string]struct{}
	trust    map[string]map[string]float64 // trust[observer][observed]

	rngMu sync.Mutex
	rng   *rand.Rand

	world worldState
}

// Option configures a [Coordinator].
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRand injects a seeded random source so tick probabilities and gossip
// pairing are deterministic under test.
func WithRand(rng *rand.Rand) Option {
	return func(c *Coordinator) {
		if rng != nil {
			c.rng = rng
		}
	}
}

// WithAgentOptions passes options through to every agent the coordinator
// builds, e.g. the configured reflection interval.
func WithAgentOptions(opts ...agent.Option) Option {
	return func(c *Coordinator) {
		c.agentOpts = opts
	}
}

// New builds a coordinator over its collaborating services.
func New(deps Deps, opts ...Option) (*Coordinator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		deps:     deps,
		logger:   slog.Default(),
		agents:   make(map[string]*entry),
		factions: make(map[string]map[string]struct{}),
		trust:    make(map[string]map[string]float64),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.hub = NewHub(c.logger)
	c.world = newWorldState()
	return c, nil
}

// Hub exposes the event hub for subscription.
func (c *Coordinator) Hub() *Hub { return c.hub }

// Quests exposes the quest service for the surface layer.
func (c *Coordinator) Quests() *civ.Quests { return c.deps.Quests }

// Goals exposes the goal registry.
func (c *Coordinator) Goals() *civ.Goals { return c.deps.Goals }

// Chains exposes the quest-chain registry.
func (c *Coordinator) Chains() *civ.Chains { return c.deps.Chains }

// Trade exposes the trade-route registry.
func (c *Coordinator) Trade() *civ.Trade { return c.deps.Trade }

// Territory exposes the territorial-control registry.
func (c *Coordinator) Territory() *civ.Territory { return c.deps.Territory }

// ─────────────────────────────────────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────────────────────────────────────

// RegisterResult reports the outcome of one registration.
type RegisterResult struct {
	Status   string // "initialized" or "already_exists"
	AgentID  string
	Role     string
	Location string
}

// AgentSummary is one row of the fleet listing.
type AgentSummary struct {
	ID       string
	Role     string
	Location string
	Mood     string
}

// Register looks the persona up (personaRef defaults to agentID), builds and
// starts the agent, seeds pairwise faction trust against every existing
// agent, and enrolls it with the tier scheduler. Registering an existing
// agent returns status "already_exists" without touching it.
func (c *Coordinator) Register(ctx context.Context, agentID, personaRef string) (RegisterResult, error) {
	c.mu.RLock()
	if e, ok := c.agents[agentID]; ok {
		p := e.agent.Persona()
		c.mu.RUnlock()
		return RegisterResult{
			Status:   "already_exists",
			AgentID:  agentID,
			Role:     p.Role,
			Location: p.Location,
		}, nil
	}
	c.mu.RUnlock()

	if personaRef == "" {
		personaRef = agentID
	}
	p, err := c.deps.Personas.Get(personaRef)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("fleet: register %q: %w", agentID, err)
	}
	p.ID = agentID
	if p.Faction == "" {
		p.Faction = "citizens"
	}

	ag := agent.New(p, c.deps.Engine, c.deps.Store, c.deps.Topics, c.deps.Social, c.agentOpts...)
	if err := ag.Start(ctx); err != nil {
		return RegisterResult{}, fmt.Errorf("fleet: start agent %q: %w", agentID, err)
	}

	c.mu.Lock()
	if _, ok := c.agents[agentID]; ok {
		// Raced with a concurrent Register for the same ID.
		c.mu.Unlock()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ag.Stop(stopCtx)
		return RegisterResult{
			Status:   "already_exists",
			AgentID:  agentID,
			Role:     p.Role,
			Location: p.Location,
		}, nil
	}
	c.agents[agentID] = &entry{agent: ag, faction: p.Faction}
	if c.factions[p.Faction] == nil {
		c.factions[p.Faction] = make(map[string]struct{})
	}
	c.factions[p.Faction][agentID] = struct{}{}
	for otherID, other := range c.agents {
		if otherID == agentID {
			continue
		}
		seed := crossFactionTrust
		if other.faction == p.Faction {
			seed = sameFactionTrust
		}
		c.setTrustLocked(agentID, otherID, seed)
		c.setTrustLocked(otherID, agentID, seed)
	}
	c.mu.Unlock()

	c.deps.Scale.RegisterAgent(agentID, p.Location)
	c.hub.Publish(Event{
		Stream: StreamFaction,
		Type:   "agent_registered",
		Detail: fmt.Sprintf("%s joined faction %s", agentID, p.Faction),
	})

	c.logger.Info("agent registered",
		slog.String("agent_id", agentID),
		slog.String("faction", p.Faction),
		slog.String("role", p.Role))
	return RegisterResult{
		Status:   "initialized",
		AgentID:  agentID,
		Role:     p.Role,
		Location: p.Location,
	}, nil
}

// Unregister stops and removes an agent. Its trust entries and faction
// membership go with it; persisted memories stay in the store.
func (c *Coordinator) Unregister(ctx context.Context, agentID string) error {
	c.mu.Lock()
	e, ok := c.agents[agentID]
	if !ok {
		c.mu.Unlock()
		return ErrAgentNotFound
	}
	delete(c.agents, agentID)
	delete(c.factions[e.faction], agentID)
	if len(c.factions[e.faction]) == 0 {
		delete(c.factions, e.faction)
	}
	delete(c.trust, agentID)
	for _, observed := range c.trust {
		delete(observed, agentID)
	}
	c.mu.Unlock()

	if err := e.agent.Stop(ctx); err != nil {
		return fmt.Errorf("fleet: stop agent %q: %w", agentID, err)
	}
	c.logger.Info("agent unregistered", slog.String("agent_id", agentID))
	return nil
}

// Agent returns a registered agent's runtime handle.
func (c *Coordinator) Agent(agentID string) (*agent.Agent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.agents[agentID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return e.agent, nil
}

// AgentByID adapts [Coordinator.Agent] to the conversation layer's directory
// contract.
func (c *Coordinator) AgentByID(agentID string) (*agent.Agent, bool) {
	ag, err := c.Agent(agentID)
	return ag, err == nil
}

// AgentIDs returns every registered agent ID in sorted order.
func (c *Coordinator) AgentIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.agents))
	for id := range c.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FactionOf returns an agent's faction.
func (c *Coordinator) FactionOf(agentID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.agents[agentID]
	if !ok {
		return "", ErrAgentNotFound
	}
	return e.faction, nil
}

// List snapshots every registered agent. Agents that fail to answer a status
// probe (stopping, for instance) are listed without a mood.
func (c *Coordinator) List(ctx context.Context) []AgentSummary {
	c.mu.RLock()
	entries := make([]*entry, 0, len(c.agents))
	for _, e := range c.agents {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	out := make([]AgentSummary, 0, len(entries))
	for _, e := range entries {
		p := e.agent.Persona()
		summary := AgentSummary{ID: e.agent.ID(), Role: p.Role, Location: p.Location}
		if st, err := e.agent.Status(ctx); err == nil {
			summary.Mood = st.Emotional.Mood
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StopAll shuts every agent down, attempting all of them and returning the
// first error encountered.
func (c *Coordinator) StopAll(ctx context.Context) error {
	c.mu.Lock()
	entries := make([]*entry, 0, len(c.agents))
	for _, e := range c.agents {
		entries = append(entries, e)
	}
	c.agents = make(map[string]*entry)
	c.factions = make(map[string]map[string]struct{})
	c.trust = make(map[string]map[string]float64)
	c.mu.Unlock()

	var firstErr error
	for _, e := range entries {
		if err := e.agent.Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("fleet: stop agent %q: %w", e.agent.ID(), err)
		}
	}
	return firstErr
}

// ─────────────────────────────────────────────────────────────────────────────
// Trust matrix
// ─────────────────────────────────────────────────────────────────────────────

// Trust returns how much observer trusts observed, defaulting to 0.5 for
// pairs with no history.
func (c *Coordinator) Trust(observer, observed string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if row, ok := c.trust[observer]; ok {
		if v, ok := row[observed]; ok {
			return v
		}
	}
	return defaultTrust
}

// AdjustTrust shifts observer's trust in observed by delta, clamped to
// [0, 1]. A significant change (|delta| > 0.05) additionally leaves a social
// memory on the observer so the relationship shift is part of its history.
func (c *Coordinator) AdjustTrust(ctx context.Context, observer, observed string, delta float64) (float64, error) {
	c.mu.Lock()
	if _, ok := c.agents[observer]; !ok {
		c.mu.Unlock()
		return 0, fmt.Errorf("fleet: adjust trust: observer %q: %w", observer, ErrAgentNotFound)
	}
	current := defaultTrust
	if row, ok := c.trust[observer]; ok {
		if v, ok := row[observed]; ok {
			current = v
		}
	}
	updated := memory.Clamp(current+delta, 0, 1)
	c.setTrustLocked(observer, observed, updated)
	c.mu.Unlock()

	if delta > trustMemoryThreshold || delta < -trustMemoryThreshold {
		_, err := c.deps.Store.AppendMemory(ctx, memory.Memory{
			AgentID:  observer,
			Kind:     memory.KindSocial,
			Content:  fmt.Sprintf("Trust towards %s changed by %+.2f to %.2f", observed, delta, updated),
			Strength: 0.7,
		})
		if err != nil {
			return updated, fmt.Errorf("fleet: record trust memory: %w", err)
		}
	}
	return updated, nil
}

// setTrustLocked writes one directional trust value. Must be called with
// c.mu held.
func (c *Coordinator) setTrustLocked(observer, observed string, v float64) {
	if c.trust[observer] == nil {
		c.trust[observer] = make(map[string]float64)
	}
	c.trust[observer][observed] = v
}

// FactionInfo describes one faction's membership and cohesion.
type FactionInfo struct {
	Name         string
	Members      []string
	AverageTrust float64
}

// Faction returns membership and average pairwise trust for one faction.
// A faction with fewer than two members reports full cohesion.
func (c *Coordinator) Faction(name string) (FactionInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	members, ok := c.factions[name]
	if !ok {
		return FactionInfo{}, fmt.Errorf("fleet: faction %q: %w", name, ErrAgentNotFound)
	}
	info := FactionInfo{Name: name}
	for id := range members {
		info.Members = append(info.Members, id)
	}
	sort.Strings(info.Members)

	if len(info.Members) < 2 {
		info.AverageTrust = 1.0
		return info, nil
	}
	var sum float64
	var n int
	for _, a := range info.Members {
		for _, b := range info.Members {
			if a == b {
				continue
			}
			v := defaultTrust
			if row, ok := c.trust[a]; ok {
				if t, ok := row[b]; ok {
					v = t
				}
			}
			sum += v
			n++
		}
	}
	info.AverageTrust = sum / float64(n)
	return info, nil
}

// Factions lists every faction with at least one member.
func (c *Coordinator) Factions() []FactionInfo {
	c.mu.RLock()
	names := make([]string, 0, len(c.factions))
	for name := range c.factions {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)

	out := make([]FactionInfo, 0, len(names))
	for _, name := range names {
		if info, err := c.Faction(name); err == nil {
			out = append(out, info)
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// RNG helpers
// ─────────────────────────────────────────────────────────────────────────────

func (c *Coordinator) roll(chance float64) bool {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Float64() < chance
}

// pickAgents selects n distinct registered agent IDs uniformly at random.
// Returns nil when fewer than n agents are registered.
func (c *Coordinator) pickAgents(n int) []string {
	ids := c.AgentIDs()
	if len(ids) < n {
		return nil
	}
	c.rngMu.Lock()
	c.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	c.rngMu.Unlock()
	return ids[:n]
}
