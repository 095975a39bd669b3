// Package persona defines who an NPC is before it starts thinking: identity,
// role, faction, dialogue style, personality vector, starting vitals and the
// seed memories it wakes up with.
//
// Personas come from three places: YAML definition files loaded at startup
// ([LoadDir]), role-template generation ([Generator]), and direct registration
// through the API. All three land in a [Registry]; agent initialisation looks
// the persona up by reference and fails with [ErrNotFound] when it is missing.
// There is no silent default persona.
package persona

import (
	"errors"
	"fmt"

	"github.com/duskfolk/duskfolk/pkg/memory"
	"github.com/duskfolk/duskfolk/pkg/types"
)

// ErrNotFound is returned when a persona reference does not resolve.
var ErrNotFound = errors.New("persona: not found")

// ErrAlreadyRegistered is returned when a persona ID is registered twice.
var ErrAlreadyRegistered = errors.New("persona: already registered")

// SeedMemory is a memory the NPC starts with, written to the vault at
// registration so the first reflection has something to chew on.
type SeedMemory struct {
	// Kind is one of episodic, social, belief.
	Kind memory.Kind `yaml:"kind"`

	// Content is the memory text.
	Content string `yaml:"content"`

	// Strength in [0, 1]. Zero defaults to 0.7.
	Strength float64 `yaml:"strength"`
}

// Persona is a complete NPC definition. Traits is a name → value map so
// definition files can set any subset; unset traits default to 0.5.
type Persona struct {
	ID            string             `yaml:"id"`
	Name          string             `yaml:"name"`
	Role          string             `yaml:"role"`
	Location      string             `yaml:"location"`
	Faction       string             `yaml:"faction"`
	Gender        string             `yaml:"gender"`
	DialogueStyle string             `yaml:"dialogue_style"`
	Backstory     string             `yaml:"backstory"`
	Goal          string             `yaml:"goal"`
	Traits        map[string]float64 `yaml:"traits"`

	InitialVitals   types.Vitals `yaml:"initial_vitals"`
	InitialMood     string       `yaml:"initial_mood"`
	InitialMemories []SeedMemory `yaml:"initial_memories"`
}

// TraitSet materialises the persona's trait map as a full [types.TraitSet],
// filling unset traits with the 0.5 midpoint.
func (p Persona) TraitSet() types.TraitSet {
	ts := types.DefaultTraits()
	for name, v := range p.Traits {
		ts.Set(name, v)
	}
	return ts
}

// Mood returns the persona's starting mood, deriving it from the dominant
// trait when the definition leaves it empty.
func (p Persona) Mood() string {
	if p.InitialMood != "" {
		return p.InitialMood
	}
	return MoodFor(p.TraitSet())
}

// MoodFor derives a starting mood label from a personality: the first trait
// above 0.7 wins, in paranoia → aggression → empathy → curiosity order.
func MoodFor(t types.TraitSet) string {
	switch {
	case t.Paranoia > 0.7:
		return "Paranoid"
	case t.Aggression > 0.7:
		return "Alert"
	case t.Empathy > 0.7:
		return "Calm"
	case t.Curiosity > 0.7:
		return "Curious"
	default:
		return "Neutral"
	}
}

// Validate checks a persona definition for internal coherence. It returns a
// joined error listing every problem found.
func Validate(p Persona) error {
	var errs []error

	if p.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if p.Role == "" {
		errs = append(errs, errors.New("role is required"))
	}
	for name, v := range p.Traits {
		if _, ok := types.DefaultTraits().Get(name); !ok {
			errs = append(errs, fmt.Errorf("unknown trait %q", name))
		}
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("trait %q value %v outside [0, 1]", name, v))
		}
	}
	if h := p.InitialVitals.Hunger; h < 0 || h > 1 {
		errs = append(errs, fmt.Errorf("initial_vitals.hunger %v outside [0, 1]", h))
	}
	if f := p.InitialVitals.Fatigue; f < 0 || f > 1 {
		errs = append(errs, fmt.Errorf("initial_vitals.fatigue %v outside [0, 1]", f))
	}
	for i, m := range p.InitialMemories {
		if m.Kind != "" && !m.Kind.IsValid() {
			errs = append(errs, fmt.Errorf("initial_memories[%d].kind %q is invalid", i, m.Kind))
		}
		if m.Content == "" {
			errs = append(errs, fmt.Errorf("initial_memories[%d].content is required", i))
		}
		if m.Strength < 0 || m.Strength > 1 {
			errs = append(errs, fmt.Errorf("initial_memories[%d].strength %v outside [0, 1]", i, m.Strength))
		}
	}

	return errors.Join(errs...)
}
