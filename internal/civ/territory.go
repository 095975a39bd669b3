package civ

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

// BattleStatus is the battle state machine:
// in_progress → attacker_won | defender_won.
type BattleStatus string

const (
	BattleInProgress  BattleStatus = "in_progress"
	BattleAttackerWon BattleStatus = "attacker_won"
	BattleDefenderWon BattleStatus = "defender_won"
)

// territoryInfo is the static description of one contested district.
type territoryInfo struct {
	name           string
	defaultOwner   string
	strategicValue float64
}

var territories = map[string]territoryInfo{
	"gates":         {name: "City Gates", defaultOwner: "guards", strategicValue: 0.9},
	"market":        {name: "Market Square", defaultOwner: "traders", strategicValue: 0.8},
	"docks":         {name: "The Docks", defaultOwner: "traders", strategicValue: 0.7},
	"slums":         {name: "The Slums", defaultOwner: "outcasts", strategicValue: 0.4},
	"old_quarter":   {name: "Old Quarter", defaultOwner: "citizens", strategicValue: 0.5},
	"northern_pass": {name: "Northern Pass", defaultOwner: "guards", strategicValue: 0.6},
}

// Control describes who holds a territory and how firmly.
type Control struct {
	Territory      string
	Name           string
	Faction        string
	Strength       float64
	StrategicValue float64
	LastChanged    time.Time
}

// Battle is one contest for a territory.
type Battle struct {
	ID                 string
	Territory          string
	AttackerFaction    string
	DefenderFaction    string
	AttackerStrength   float64
	DefenderStrength   float64
	Status             BattleStatus
	StartedAt          time.Time
	EndedAt            time.Time
	AttackerCasualties int
	DefenderCasualties int
}

// BattleResult is the resolution of one battle.
type BattleResult struct {
	BattleID           string
	Territory          string
	Winner             string
	Status             BattleStatus
	AttackerCasualties int
	DefenderCasualties int
	ControlChanged     bool
}

// Territory manages territorial control and the battle ledger.
type Territory struct {
	logger *slog.Logger

	mu      sync.RWMutex
	control map[string]Control
	battles map[string]Battle
	history []string // battle IDs, oldest first
	rng     *rand.Rand
}

// TerritoryOption configures a [Territory] registry.
type TerritoryOption func(*Territory)

// WithTerritoryRand injects a seeded random source.
func WithTerritoryRand(rng *rand.Rand) TerritoryOption {
	return func(t *Territory) {
		if rng != nil {
			t.rng = rng
		}
	}
}

// WithTerritoryLogger sets the registry logger.
func WithTerritoryLogger(l *slog.Logger) TerritoryOption {
	return func(t *Territory) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTerritory builds the registry with every district under its default
// owner at full strength.
func NewTerritory(opts ...TerritoryOption) *Territory {
	t := &Territory{
		logger:  slog.Default(),
		control: make(map[string]Control, len(territories)),
		battles: make(map[string]Battle),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	now := time.Now()
	for key, info := range territories {
		t.control[key] = Control{
			Territory:      key,
			Name:           info.name,
			Faction:        info.defaultOwner,
			Strength:       1.0,
			StrategicValue: info.strategicValue,
			LastChanged:    now,
		}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ControlMap returns the current control of every territory.
func (t *Territory) ControlMap() map[string]Control {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Control, len(t.control))
	for k, v := range t.control {
		out[k] = v
	}
	return out
}

// Initiate opens a battle for a territory. The defender is the current
// controller (citizens when the territory is unknown). Attacking a
// territory the faction already holds returns ErrOwnTerritory. Defenders
// draw slightly stronger than attackers.
func (t *Territory) Initiate(territory, attackerFaction string) (Battle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	defender := "citizens"
	if c, ok := t.control[territory]; ok {
		defender = c.Faction
	}
	if attackerFaction == defender {
		return Battle{}, fmt.Errorf("initiate battle for %s: %w", territory, ErrOwnTerritory)
	}

	b := Battle{
		ID:               uuid.NewString()[:12],
		Territory:        territory,
		AttackerFaction:  attackerFaction,
		DefenderFaction:  defender,
		AttackerStrength: 0.4 + t.rng.Float64()*0.4,
		DefenderStrength: 0.5 + t.rng.Float64()*0.4,
		Status:           BattleInProgress,
		StartedAt:        time.Now(),
	}
	t.battles[b.ID] = b
	t.history = append(t.history, b.ID)

	t.logger.Info("territorial battle started",
		slog.String("territory", territory),
		slog.String("attacker", attackerFaction),
		slog.String("defender", defender))
	return b, nil
}

// Resolve decides an in-progress battle. Each side rolls strength times a
// jitter, the defender's jitter tighter and higher; weaker sides bleed more.
// An attacker win flips control to them at strength 0.6.
func (t *Territory) Resolve(battleID string) (BattleResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.battles[battleID]
	if !ok {
		return BattleResult{}, fmt.Errorf("resolve battle %s: %w", battleID, memory.ErrNotFound)
	}
	if b.Status != BattleInProgress {
		return BattleResult{}, fmt.Errorf("resolve battle %s (status %s): %w", battleID, b.Status, ErrWrongState)
	}

	attackerRoll := b.AttackerStrength * (0.8 + t.rng.Float64()*0.4)
	defenderRoll := b.DefenderStrength * (0.9 + t.rng.Float64()*0.2)
	attackerWon := attackerRoll > defenderRoll

	b.AttackerCasualties = int((1 - b.AttackerStrength) * 100 * (0.5 + t.rng.Float64()))
	b.DefenderCasualties = int((1 - b.DefenderStrength) * 100 * (0.5 + t.rng.Float64()))
	b.EndedAt = time.Now()
	if attackerWon {
		b.Status = BattleAttackerWon
	} else {
		b.Status = BattleDefenderWon
	}
	t.battles[battleID] = b

	winner := b.DefenderFaction
	if attackerWon {
		winner = b.AttackerFaction
		c := t.control[b.Territory]
		c.Territory = b.Territory
		c.Faction = b.AttackerFaction
		c.Strength = 0.6
		c.LastChanged = b.EndedAt
		if info, ok := territories[b.Territory]; ok {
			c.Name = info.name
			c.StrategicValue = info.strategicValue
		}
		t.control[b.Territory] = c
	}

	t.logger.Info("territorial battle resolved",
		slog.String("territory", b.Territory),
		slog.String("winner", winner),
		slog.Bool("control_changed", attackerWon))

	return BattleResult{
		BattleID:           battleID,
		Territory:          b.Territory,
		Winner:             winner,
		Status:             b.Status,
		AttackerCasualties: b.AttackerCasualties,
		DefenderCasualties: b.DefenderCasualties,
		ControlChanged:     attackerWon,
	}, nil
}

// History returns recent battles, newest first, optionally scoped to one
// territory.
func (t *Territory) History(territory string, limit int) []Battle {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Battle
	for i := len(t.history) - 1; i >= 0 && len(out) < limit; i-- {
		b := t.battles[t.history[i]]
		if territory != "" && b.Territory != territory {
			continue
		}
		out = append(out, b)
	}
	return out
}
