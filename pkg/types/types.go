// Package types contains the shared value types used across the Duskfolk NPC
// runtime: personality traits, vitals, emotional state, locations, and the
// cognitive frame produced by a reactive cycle.
//
// The package exists to break import cycles between the agent runtime, the
// fleet coordinator, and the conversation-group layer — all of which exchange
// these values but must not depend on each other. It therefore contains only
// plain data types and pure helpers; anything with behaviour lives elsewhere.
package types

import (
	"fmt"
	"math"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Personality
// ─────────────────────────────────────────────────────────────────────────────

// TraitSet is an NPC's eight-dimensional personality vector. Every field is a
// real value in [0, 1]; 0.5 is the neutral midpoint for all traits.
//
// Trait values written through the trait ledger are additionally soft-clamped
// into [0.05, 0.95] so that no sequence of events can produce an inhumanly
// absolute personality.
type TraitSet struct {
	Curiosity     float64 `json:"curiosity"`
	Empathy       float64 `json:"empathy"`
	RiskTolerance float64 `json:"risk_tolerance"`
	Aggression    float64 `json:"aggression"`
	Discipline    float64 `json:"discipline"`
	Romanticism   float64 `json:"romanticism"`
	Opportunism   float64 `json:"opportunism"`
	Paranoia      float64 `json:"paranoia"`
}

// DefaultTraits returns a fully neutral personality.
func DefaultTraits() TraitSet {
	return TraitSet{
		Curiosity:     0.5,
		Empathy:       0.5,
		RiskTolerance: 0.5,
		Aggression:    0.5,
		Discipline:    0.5,
		Romanticism:   0.5,
		Opportunism:   0.5,
		Paranoia:      0.5,
	}
}

// Get returns the named trait value. Unknown names return 0.5 and false.
func (t TraitSet) Get(name string) (float64, bool) {
	switch name {
	case "curiosity":
		return t.Curiosity, true
	case "empathy":
		return t.Empathy, true
	case "risk_tolerance":
		return t.RiskTolerance, true
	case "aggression":
		return t.Aggression, true
	case "discipline":
		return t.Discipline, true
	case "romanticism":
		return t.Romanticism, true
	case "opportunism":
		return t.Opportunism, true
	case "paranoia":
		return t.Paranoia, true
	}
	return 0.5, false
}

// Set assigns the named trait. Unknown names are ignored and return false.
func (t *TraitSet) Set(name string, v float64) bool {
	switch name {
	case "curiosity":
		t.Curiosity = v
	case "empathy":
		t.Empathy = v
	case "risk_tolerance":
		t.RiskTolerance = v
	case "aggression":
		t.Aggression = v
	case "discipline":
		t.Discipline = v
	case "romanticism":
		t.Romanticism = v
	case "opportunism":
		t.Opportunism = v
	case "paranoia":
		t.Paranoia = v
	default:
		return false
	}
	return true
}

// TraitNames lists the trait identifiers in canonical order. The order matches
// the struct field order of [TraitSet].
var TraitNames = []string{
	"curiosity", "empathy", "risk_tolerance", "aggression",
	"discipline", "romanticism", "opportunism", "paranoia",
}

// ─────────────────────────────────────────────────────────────────────────────
// Vitals and emotional state
// ─────────────────────────────────────────────────────────────────────────────

// Vitals are an NPC's survival pressures. Both values are in [0, 1]; 0 is
// fully satisfied, 1 is saturated (starving / exhausted). The autonomous loop
// is the only writer.
type Vitals struct {
	Hunger  float64 `json:"hunger"`
	Fatigue float64 `json:"fatigue"`
}

// EmotionalState is the NPC's limbic snapshot: a coarse mood label plus a
// two-dimensional arousal/valence model. Arousal and Valence are in [0, 1]
// with 0.5 as the resting point.
type EmotionalState struct {
	Mood    string  `json:"mood"`
	Arousal float64 `json:"arousal"`
	Valence float64 `json:"valence"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Intent
// ─────────────────────────────────────────────────────────────────────────────

// Intent is the action category an NPC resolves a perception into. The set is
// closed: the cognitive model is instructed to pick one of these seven, and
// frames carrying anything else fail validation.
type Intent string

const (
	IntentInvestigate Intent = "Investigate"
	IntentFlee        Intent = "Flee"
	IntentAssist      Intent = "Assist"
	IntentIgnore      Intent = "Ignore"
	IntentSocialize   Intent = "Socialize"
	IntentGuard       Intent = "Guard"
	IntentTrade       Intent = "Trade"
)

// Intents lists every valid intent.
var Intents = []Intent{
	IntentInvestigate, IntentFlee, IntentAssist, IntentIgnore,
	IntentSocialize, IntentGuard, IntentTrade,
}

// ParseIntent maps s onto a known [Intent]. The second return value is false
// when s is not one of the seven valid intents.
func ParseIntent(s string) (Intent, bool) {
	for _, in := range Intents {
		if s == string(in) {
			return in, true
		}
	}
	return "", false
}

// IsValid reports whether i is one of the seven known intents.
func (i Intent) IsValid() bool {
	_, ok := ParseIntent(string(i))
	return ok
}

// ─────────────────────────────────────────────────────────────────────────────
// Cognitive frame
// ─────────────────────────────────────────────────────────────────────────────

// CognitiveFrame is the structured output of one reactive cycle: what the NPC
// thought, what it decided to do, and what (if anything) it said.
//
// TrustMod is the single write path for player reputation; everything else
// that touches reputation derives from it. It is clamped to [−0.1, 0.1] by
// meta resolution before anyone reads it.
type CognitiveFrame struct {
	// InternalReflection is the NPC's private reasoning, never shown to the
	// player. Degraded frames carry an "[ERROR: …]" prefix here.
	InternalReflection string `json:"internal_reflection"`

	// Intent is the resolved action category.
	Intent Intent `json:"intent"`

	// Dialogue is the spoken response. May be empty (silent action).
	Dialogue string `json:"dialogue"`

	// Urgency in [0, 1] drives trait drift and downstream prioritisation.
	Urgency float64 `json:"urgency"`

	// TrustMod in [−0.1, 0.1] adjusts the acting player's reputation with
	// this NPC. Optional; zero means no change.
	TrustMod float64 `json:"trust_mod,omitempty"`

	// EmotionalState is the model's label for how the NPC feels now.
	EmotionalState string `json:"emotional_state"`

	// Fallback marks frames produced by the degraded path (LLM deadline,
	// circuit open, malformed response). Fallback frames persist nothing.
	Fallback bool `json:"-"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Location
// ─────────────────────────────────────────────────────────────────────────────

// Location is a 3D world position plus a named zone, updated externally by the
// game server for both agents and players.
type Location struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Zone      string    `json:"zone"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DistanceTo returns the Euclidean 3D distance between two locations. Zones
// are not considered.
func (l Location) DistanceTo(other Location) float64 {
	dx := l.X - other.X
	dy := l.Y - other.Y
	dz := l.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (l Location) String() string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f) in %s", l.X, l.Y, l.Z, l.Zone)
}
