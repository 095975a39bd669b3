// Package mind implements the cognitive core of an NPC: the limbic state
// machine (vitals, arousal/valence emotion), prompt composition for the
// language model, schema-validated frame decoding with a degraded fallback
// path, the background reflection summariser, and the meta layer that
// resolves conflicts between what the model decided and what the body needs.
//
// The package holds no references to agents, stores, or the fleet; it is pure
// computation plus one [llm.Provider] dependency, so every rule in it can be
// tested without infrastructure.
package mind

import (
	"strings"
	"time"

	"github.com/duskfolk/duskfolk/pkg/types"
)

// Vitals saturation horizons: with no food an NPC starves in ~4 hours of
// wall time, and exhausts in ~6.
const (
	hungerSaturation  = 14400.0
	fatigueSaturation = 21600.0
)

// EventKind classifies what a perception does to the limbic system.
type EventKind string

const (
	// EventNone leaves emotion untouched apart from baseline decay.
	EventNone EventKind = "none"

	// EventThreat raises arousal and drops valence.
	EventThreat EventKind = "threat"

	// EventPositive raises valence and calms arousal.
	EventPositive EventKind = "positive"
)

// Limbic is one NPC's body state: survival vitals plus a two-dimensional
// emotion model. It is not safe for concurrent use; the agent mailbox worker
// is its single owner.
type Limbic struct {
	Vitals    types.Vitals
	Emotional types.EmotionalState
}

// NewLimbic builds a limbic system from starting vitals and mood, with
// arousal and valence at the 0.5 resting point.
func NewLimbic(v types.Vitals, mood string) *Limbic {
	if mood == "" {
		mood = "Calm"
	}
	return &Limbic{
		Vitals: v,
		Emotional: types.EmotionalState{
			Mood:    mood,
			Arousal: 0.5,
			Valence: 0.5,
		},
	}
}

// DecayVitals advances hunger and fatigue by elapsed wall time. Both values
// saturate at 1.
func (l *Limbic) DecayVitals(elapsed time.Duration) {
	s := elapsed.Seconds()
	l.Vitals.Hunger = min(1.0, l.Vitals.Hunger+s/hungerSaturation)
	l.Vitals.Fatigue = min(1.0, l.Vitals.Fatigue+s/fatigueSaturation)
}

// ApplyEvent folds one perceived event into the emotional state, then decays
// arousal and valence toward their baselines. EventNone applies decay only.
func (l *Limbic) ApplyEvent(kind EventKind, intensity float64) {
	switch kind {
	case EventThreat:
		l.Emotional.Arousal = min(1.0, l.Emotional.Arousal+intensity)
		l.Emotional.Valence = max(0.0, l.Emotional.Valence-intensity)
		if l.Emotional.Arousal > 0.7 {
			l.Emotional.Mood = "Paranoid"
		}
	case EventPositive:
		l.Emotional.Valence = min(1.0, l.Emotional.Valence+intensity)
		l.Emotional.Arousal = max(0.0, l.Emotional.Arousal-intensity*0.5)
		if l.Emotional.Valence > 0.7 {
			l.Emotional.Mood = "Happy"
		}
	}

	l.Emotional.Arousal *= 0.95
	l.Emotional.Valence = 0.5 + (l.Emotional.Valence-0.5)*0.9
}

// ThinkTime is the simulated sensory latency before the NPC responds: nearly
// instant when panicked, slow when calm. Callers sleep a scaled-down fraction
// of this so agents stay responsive under test and load.
func (l *Limbic) ThinkTime() time.Duration {
	switch {
	case l.Emotional.Arousal > 0.8:
		return 100 * time.Millisecond
	case l.Emotional.Arousal < 0.3:
		return 2 * time.Second
	default:
		return time.Second
	}
}

// ClassifyPerception scans a perception for limbic trigger words and returns
// the event kind plus its intensity. Threat cues dominate positive ones.
func ClassifyPerception(text string) (EventKind, float64) {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "threat") || strings.Contains(lower, "weapon") {
		return EventThreat, 0.3
	}
	if strings.Contains(lower, "help") || strings.Contains(lower, "assist") {
		return EventPositive, 0.2
	}
	return EventNone, 0
}
