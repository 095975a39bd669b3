package topics

import (
	"strings"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

// categoryConfig holds the trigger keywords and base emotional weight for one
// topic category. The keyword lists and weights are the tuning that drives
// the whole topic system; changing them changes what NPCs remember.
type categoryConfig struct {
	keywords   []string
	baseWeight float64
}

var categories = map[memory.TopicCategory]categoryConfig{
	memory.CategoryFamily: {
		keywords: []string{
			"family", "father", "mother", "brother", "sister", "son",
			"daughter", "wife", "husband", "parents", "children",
			"killed", "died", "lost",
		},
		baseWeight: 0.9,
	},
	memory.CategoryGoal: {
		keywords: []string{
			"want to", "need to", "looking for", "searching", "find",
			"seeking", "goal", "mission", "quest", "dream",
		},
		baseWeight: 0.7,
	},
	memory.CategoryFear: {
		keywords: []string{
			"afraid", "fear", "scared", "terrified", "nightmare",
			"dread", "worry", "anxious",
		},
		baseWeight: 0.8,
	},
	memory.CategoryEvent: {
		keywords: []string{
			"happened", "attacked", "survived", "escaped", "witnessed",
			"saw", "remember when", "last year", "last month", "yesterday",
		},
		baseWeight: 0.75,
	},
	memory.CategoryPreference: {
		keywords: []string{
			"like", "love", "hate", "prefer", "favorite", "enjoy", "despise",
		},
		baseWeight: 0.5,
	},
	memory.CategorySecret: {
		keywords: []string{
			"secret", "don't tell", "between us", "confidential",
			"trust you", "never told anyone", "no one knows", "dark past",
			"hidden", "used to be", "changed my ways",
		},
		baseWeight: 0.95,
	},
	memory.CategoryOrigin: {
		keywords: []string{
			"from", "hometown", "village", "city", "born", "grew up",
			"raised", "northern", "southern", "eastern", "western",
		},
		baseWeight: 0.6,
	},
	memory.CategoryProfession: {
		keywords: []string{
			"work", "job", "trade", "merchant", "soldier", "farmer",
			"hunter", "blacksmith", "healer", "bandit", "thief", "spy",
			"captain", "guard", "knight",
		},
		baseWeight: 0.5,
	},
	memory.CategoryCrime: {
		keywords: []string{
			"robbed", "stole", "killed", "murdered", "crime", "criminal",
			"outlaw", "bandit", "thief", "guilty",
		},
		baseWeight: 0.9,
	},
}

// matchKeywords returns the category keywords present in the lower-cased
// message, in configuration order.
func matchKeywords(cfg categoryConfig, messageLower string) []string {
	var matched []string
	for _, kw := range cfg.keywords {
		if strings.Contains(messageLower, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}
