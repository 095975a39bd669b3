package mind

import (
	"fmt"
	"strings"

	"github.com/duskfolk/duskfolk/internal/persona"
	"github.com/duskfolk/duskfolk/pkg/memory"
	"github.com/duskfolk/duskfolk/pkg/types"
)

// Context is everything the retrieval layer assembled for one reactive cycle.
// Empty slices render as explicit "nothing here" lines so the model never has
// to guess whether retrieval ran.
type Context struct {
	Memories     []memory.Memory
	Beliefs      []memory.Belief
	Topics       []memory.Topic
	SharedTopics []memory.SharedTopic
	Rumors       []string

	// Reputation is the acting player's standing with this NPC.
	// HasReputation distinguishes "0.5 neutral" from "unknown player".
	Reputation    float64
	HasReputation bool
}

// systemPrompt renders the persona into the standing instruction the model
// sees on every cognition call: identity, personality table, world framing,
// and the strict JSON output contract.
func systemPrompt(p persona.Persona, traits types.TraitSet) string {
	var b strings.Builder

	name := p.Name
	if name == "" {
		name = p.ID
	}

	fmt.Fprintf(&b, "You are %s, an NPC in the post-apocalyptic world of Fractured Survival.\n\n", name)

	b.WriteString("PERSONALITY TRAITS (0.0-1.0 scale):\n")
	fmt.Fprintf(&b, "- Curiosity: %.2f\n", traits.Curiosity)
	fmt.Fprintf(&b, "- Empathy: %.2f\n", traits.Empathy)
	fmt.Fprintf(&b, "- Risk Tolerance: %.2f\n", traits.RiskTolerance)
	fmt.Fprintf(&b, "- Aggression: %.2f\n", traits.Aggression)
	fmt.Fprintf(&b, "- Anxiety/Paranoia: %.2f\n", traits.Paranoia)
	fmt.Fprintf(&b, "- Discipline: %.2f\n", traits.Discipline)
	fmt.Fprintf(&b, "- Romanticism: %.2f\n", traits.Romanticism)
	fmt.Fprintf(&b, "- Opportunism: %.2f\n\n", traits.Opportunism)

	b.WriteString("ROLE & CONTEXT:\n")
	fmt.Fprintf(&b, "You are %s, stationed at %s. Resources are scarce, trust is rare.\n", p.Role, p.Location)
	if p.Faction != "" {
		fmt.Fprintf(&b, "You belong to the %s faction.\n", p.Faction)
	}
	if p.Backstory != "" {
		fmt.Fprintf(&b, "Backstory: %s\n", p.Backstory)
	}
	if p.Goal != "" {
		fmt.Fprintf(&b, "Your goal: %s\n", p.Goal)
	}
	if p.DialogueStyle != "" {
		fmt.Fprintf(&b, "Speaking style: %s\n", p.DialogueStyle)
	}
	b.WriteString("\n")

	b.WriteString(`CRITICAL INSTRUCTIONS:
1. Generate responses in STRICT JSON format with these exact fields:
   - internal_reflection: Your private thoughts (string)
   - intent: Your action goal (one of: Investigate, Flee, Assist, Ignore, Socialize, Guard, Trade)
   - dialogue: Your spoken words (string, can be empty if you stay silent)
   - urgency: Action priority (float 0.0-1.0)
   - trust_mod: Trust change for the player (float, -0.1 to +0.1, optional)
   - emotional_state: Your current mood (string)

2. Your internal_reflection should be detailed and consider:
   - Your personality traits
   - Past memories
   - Current vitals (hunger, fatigue)
   - The player's action and its implications

3. Your dialogue should reflect your personality. High paranoia = guarded speech.

4. ALWAYS respond with valid JSON only. No additional text.

Example response:
{
  "internal_reflection": "He's approaching with a weapon visible. Given my paranoia (0.8), I should be cautious. But he's not pointing it at me...",
  "intent": "Investigate",
  "dialogue": "State your business, stranger. And keep that weapon sheathed.",
  "urgency": 0.7,
  "trust_mod": -0.02,
  "emotional_state": "Wary"
}`)

	return b.String()
}

// userPrompt renders one perception plus the NPC's current state and the
// assembled retrieval context into the per-turn message.
func userPrompt(perception string, vitals types.Vitals, emo types.EmotionalState, c Context) string {
	var b strings.Builder

	b.WriteString("CURRENT SITUATION:\n")
	fmt.Fprintf(&b, "Perception: %s\n\n", perception)

	b.WriteString("YOUR STATE:\n")
	fmt.Fprintf(&b, "- Vitals: Hunger %.1f, Fatigue %.1f\n", vitals.Hunger, vitals.Fatigue)
	fmt.Fprintf(&b, "- Mood: %s\n", emo.Mood)
	fmt.Fprintf(&b, "- Arousal: %.1f\n", emo.Arousal)
	if c.HasReputation {
		fmt.Fprintf(&b, "- Your trust in this player: %.2f\n", c.Reputation)
	}
	b.WriteString("\n")

	b.WriteString("RECENT MEMORIES:\n")
	b.WriteString(formatMemories(c.Memories))
	b.WriteString("\n\nBELIEFS:\n")
	b.WriteString(formatBeliefs(c.Beliefs))

	if len(c.Topics) > 0 {
		b.WriteString("\n\nTHINGS YOU REMEMBER ABOUT THIS PLAYER:\n")
		for _, t := range c.Topics {
			fmt.Fprintf(&b, "- [%s] %s\n", t.Category, t.Content)
		}
	}
	if len(c.SharedTopics) > 0 {
		b.WriteString("\nTHINGS OTHERS TOLD YOU ABOUT THIS PLAYER:\n")
		for _, st := range c.SharedTopics {
			fmt.Fprintf(&b, "- (heard from %s) %s\n", st.FromAgent, st.Content)
		}
	}
	if len(c.Rumors) > 0 {
		b.WriteString("\nRUMORS YOU HAVE HEARD:\n")
		for _, r := range c.Rumors {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	b.WriteString("\n\nRespond with your cognitive frame in JSON format as instructed.")
	return b.String()
}

// reflectionPrompt asks for one summary belief over the given memories.
func reflectionPrompt(memories []memory.Memory) string {
	var b strings.Builder
	b.WriteString("AUTONOMOUS REFLECTION (Background Thinking):\n")
	b.WriteString("Review your last ")
	fmt.Fprintf(&b, "%d", len(memories))
	b.WriteString(" memories and generate a summary belief about the current situation.\n\n")
	b.WriteString("RECENT MEMORIES:\n")
	b.WriteString(formatMemories(memories))
	b.WriteString("\n\nGenerate a single-sentence belief or insight based on these memories.\n")
	b.WriteString("Respond ONLY with the belief text, no JSON, no extra formatting.")
	return b.String()
}

func formatMemories(memories []memory.Memory) string {
	if len(memories) == 0 {
		return "- No recent memories"
	}
	lines := make([]string, len(memories))
	for i, m := range memories {
		lines[i] = fmt.Sprintf("- [%s] %s", m.Kind, m.Content)
	}
	return strings.Join(lines, "\n")
}

func formatBeliefs(beliefs []memory.Belief) string {
	if len(beliefs) == 0 {
		return "- No established beliefs yet"
	}
	lines := make([]string, len(beliefs))
	for i, b := range beliefs {
		lines[i] = "- " + b.Content
	}
	return strings.Join(lines, "\n")
}
