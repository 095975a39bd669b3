package group

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/duskfolk/duskfolk/pkg/types"
)

// defaultNearbyDistance is the proximity threshold for auto-discovering
// conversation participants.
const defaultNearbyDistance = 500.0

// LocationKind distinguishes the two entity classes the registry tracks.
type LocationKind string

const (
	LocationAgent  LocationKind = "agent"
	LocationPlayer LocationKind = "player"
)

// Neighbor is one agent ranked by distance to a player.
type Neighbor struct {
	AgentID  string
	Distance float64
}

// Locations tracks last-known positions of agents and players in world space.
// Safe for concurrent use.
type Locations struct {
	mu      sync.RWMutex
	agents  map[string]types.Location
	players map[string]types.Location

	// agentOrder preserves registration order for the no-player-position
	// fallback in Nearby.
	agentOrder []string
}

// NewLocations returns an empty registry.
func NewLocations() *Locations {
	return &Locations{
		agents:  make(map[string]types.Location),
		players: make(map[string]types.Location),
	}
}

// Update records an entity's position. Repeated updates overwrite.
func (l *Locations) Update(kind LocationKind, id string, x, y, z float64, zone string) error {
	loc := types.Location{X: x, Y: y, Z: z, Zone: zone, UpdatedAt: time.Now()}

	l.mu.Lock()
	defer l.mu.Unlock()
	switch kind {
	case LocationAgent:
		if _, known := l.agents[id]; !known {
			l.agentOrder = append(l.agentOrder, id)
		}
		l.agents[id] = loc
	case LocationPlayer:
		l.players[id] = loc
	default:
		return fmt.Errorf("group: unknown location kind %q", kind)
	}
	return nil
}

// Of returns an entity's last-known position.
func (l *Locations) Of(kind LocationKind, id string) (types.Location, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch kind {
	case LocationAgent:
		loc, ok := l.agents[id]
		return loc, ok
	case LocationPlayer:
		loc, ok := l.players[id]
		return loc, ok
	}
	return types.Location{}, false
}

// Nearby returns the agents closest to a player, nearest first, capped at the
// group size limit. maxDist <= 0 selects the default threshold. A player with
// no recorded position gets the first registered agents instead; distance is
// unknowable, so those entries report zero.
func (l *Locations) Nearby(playerID string, maxDist float64) []Neighbor {
	if maxDist <= 0 {
		maxDist = defaultNearbyDistance
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	origin, ok := l.players[playerID]
	if !ok {
		out := make([]Neighbor, 0, maxGroupSize)
		for _, id := range l.agentOrder {
			if len(out) == maxGroupSize {
				break
			}
			out = append(out, Neighbor{AgentID: id})
		}
		return out
	}

	var out []Neighbor
	for id, loc := range l.agents {
		if d := origin.DistanceTo(loc); d <= maxDist {
			out = append(out, Neighbor{AgentID: id, Distance: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].AgentID < out[j].AgentID
	})
	if len(out) > maxGroupSize {
		out = out[:maxGroupSize]
	}
	return out
}

// InZone returns the agents whose last-known zone matches, sorted by ID.
func (l *Locations) InZone(zone string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []string
	for id, loc := range l.agents {
		if loc.Zone == zone {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
