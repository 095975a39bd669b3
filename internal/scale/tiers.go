package scale

import (
	"slices"
	"sync"
	"time"
)

// Tier classifies how hot an agent is and therefore how often its
// autonomous update runs.
type Tier string

const (
	TierActive  Tier = "active"  // player interacting now, every tick
	TierNearby  Tier = "nearby"  // recent activity, every 5 ticks
	TierIdle    Tier = "idle"    // quiet, every 20 ticks
	TierDormant Tier = "dormant" // long inactive, every 100 ticks
)

// tierModulo maps a tier to its update cadence in ticks.
var tierModulo = map[Tier]uint64{
	TierActive:  1,
	TierNearby:  5,
	TierIdle:    20,
	TierDormant: 100,
}

// Demotion thresholds: time since last interaction before an agent drops
// out of each tier.
const (
	activeWindow = 60 * time.Second
	nearbyWindow = 300 * time.Second
	idleWindow   = 3600 * time.Second
)

type agentActivity struct {
	agentID         string
	lastInteraction time.Time
	lastUpdate      time.Time
	interactions    int
	zone            string
	tier            Tier
}

// TierStats is a snapshot of the tier distribution.
type TierStats struct {
	Total        int
	Distribution map[Tier]int
	Zones        int
	CurrentTick  uint64
}

// Tiers schedules agent updates by activity tier. Safe for concurrent use.
type Tiers struct {
	mu     sync.Mutex
	agents map[string]*agentActivity
	zones  map[string][]string
	tick   uint64

	// now is swappable in tests.
	now func() time.Time
}

// NewTiers builds an empty scheduler.
func NewTiers() *Tiers {
	return &Tiers{
		agents: make(map[string]*agentActivity),
		zones:  make(map[string][]string),
		now:    time.Now,
	}
}

// Register adds an agent in the idle tier. An empty zone lands in
// "default". Re-registering moves the agent between zones.
func (t *Tiers) Register(agentID, zone string) {
	if zone == "" {
		zone = "default"
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.agents[agentID]; ok && prev.zone != zone {
		t.removeFromZoneLocked(agentID, prev.zone)
	}
	t.agents[agentID] = &agentActivity{
		agentID:    agentID,
		lastUpdate: t.now(),
		zone:       zone,
		tier:       TierIdle,
	}
	if !slices.Contains(t.zones[zone], agentID) {
		t.zones[zone] = append(t.zones[zone], agentID)
	}
}

func (t *Tiers) removeFromZoneLocked(agentID, zone string) {
	if i := slices.Index(t.zones[zone], agentID); i >= 0 {
		t.zones[zone] = slices.Delete(t.zones[zone], i, i+1)
	}
}

// RecordInteraction promotes an agent straight to the active tier.
func (t *Tiers) RecordInteraction(agentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.agents[agentID]; ok {
		a.lastInteraction = t.now()
		a.interactions++
		a.tier = TierActive
	}
}

// Recompute demotes agents by time since their last interaction.
func (t *Tiers) Recompute() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, a := range t.agents {
		since := now.Sub(a.lastInteraction)
		switch {
		case since < activeWindow:
			a.tier = TierActive
		case since < nearbyWindow:
			a.tier = TierNearby
		case since < idleWindow:
			a.tier = TierIdle
		default:
			a.tier = TierDormant
		}
	}
}

// DueAgents advances the global tick and returns the agents whose tier
// cadence divides it.
func (t *Tiers) DueAgents() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tick++
	var due []string
	for id, a := range t.agents {
		if t.tick%tierModulo[a.tier] == 0 {
			due = append(due, id)
			a.lastUpdate = t.now()
		}
	}
	return due
}

// TierOf returns an agent's current tier, "" when unregistered.
func (t *Tiers) TierOf(agentID string) Tier {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.agents[agentID]; ok {
		return a.tier
	}
	return ""
}

// InZone lists the agents registered to a zone.
func (t *Tiers) InZone(zone string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.zones[zone]))
	copy(out, t.zones[zone])
	return out
}

// HotAgents lists agents in the active or nearby tier.
func (t *Tiers) HotAgents() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for id, a := range t.agents {
		if a.tier == TierActive || a.tier == TierNearby {
			out = append(out, id)
		}
	}
	return out
}

// Stats returns the current tier distribution.
func (t *Tiers) Stats() TierStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	dist := map[Tier]int{TierActive: 0, TierNearby: 0, TierIdle: 0, TierDormant: 0}
	for _, a := range t.agents {
		dist[a.tier]++
	}
	return TierStats{
		Total:        len(t.agents),
		Distribution: dist,
		Zones:        len(t.zones),
		CurrentTick:  t.tick,
	}
}
