package mind

import (
	"github.com/duskfolk/duskfolk/pkg/memory"
	"github.com/duskfolk/duskfolk/pkg/types"
)

// ResolveConflicts is the meta layer between cognition and action: vital
// needs override the model's decision when the body can no longer afford it.
// Critical hunger redirects anything except fleeing or helping into a search
// for food; critical fatigue forces rest unless the NPC is fleeing.
func ResolveConflicts(frame types.CognitiveFrame, vitals types.Vitals) types.CognitiveFrame {
	if vitals.Hunger > 0.8 && frame.Intent != types.IntentFlee && frame.Intent != types.IntentAssist {
		frame.Intent = types.IntentInvestigate
		frame.InternalReflection += " [Meta: Hunger override - must find food]"
		frame.Urgency = max(frame.Urgency, 0.9)
	}

	if vitals.Fatigue > 0.9 && frame.Intent != types.IntentFlee {
		frame.Intent = types.IntentIgnore
		frame.Dialogue = "I... need to rest..."
		frame.Urgency = 1.0
	}

	return frame
}

// ModulateTrust scales a raw trust_mod by personality: paranoid NPCs swing
// harder in both directions, empathic ones amplify positive changes. The
// result is clamped to [-0.1, 0.1], the only range the reputation write path
// accepts.
func ModulateTrust(mod float64, traits types.TraitSet) float64 {
	if traits.Paranoia > 0.7 {
		mod *= 1.5
	}
	if traits.Empathy > 0.7 && mod > 0 {
		mod *= 1.3
	}
	return memory.Clamp(mod, -0.1, 0.1)
}

// DriftFor maps a classified perception event onto the trait drift it causes.
// Drift only happens on high-urgency frames; low-stakes interactions do not
// reshape personality.
func DriftFor(event EventKind, urgency float64) (trait string, delta float64, ok bool) {
	if urgency <= 0.7 {
		return "", 0, false
	}
	switch event {
	case EventThreat:
		return "paranoia", 0.1, true
	case EventPositive:
		return "empathy", 0.05, true
	}
	return "", 0, false
}
