// Package phonetic resolves which group participant a player is addressing.
//
// Players type NPC names badly: "martha" for Marta, "oi eldernacks" for
// Eldrinax. Name resolution runs in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each token of the input and each participant name. A shared code makes
//     the participant a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates the highest-scoring
//     name wins, provided it clears the phonetic threshold (default 0.70).
//     Without any phonetic candidate, a stricter pure Jaro-Winkler pass
//     (default 0.85) catches typo-level misses that sound nothing alike.
//
// Multi-word names ("Old Greta") are handled by comparing full strings,
// space-stripped strings, and the best pairwise token score.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// addressWindow is how many leading tokens of an utterance are scanned
	// for a name. Direct address in game chat front-loads the name.
	addressWindow = 4
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched name to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher resolves fuzzy name references. Read-only after construction and
// safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the name from names most similar to word. word may be a single
// token or a space-separated phrase. When matched is false, corrected equals
// word unchanged and confidence is 0.
func (m *Matcher) Match(word string, names []string) (corrected string, confidence float64, matched bool) {
	if len(names) == 0 || strings.TrimSpace(word) == "" {
		return word, 0, false
	}

	wordLower := strings.ToLower(strings.TrimSpace(word))
	wordTokens := strings.Fields(wordLower)
	inputCodes := codesForTokens(wordTokens)

	type candidate struct {
		name     string
		score    float64
		phonetic bool
	}

	var best candidate

	for _, name := range names {
		nameLower := strings.ToLower(strings.TrimSpace(name))
		if nameLower == "" {
			continue
		}
		nameTokens := strings.Fields(nameLower)

		nameCodes := codesForTokens(nameTokens)
		phoneticMatch := codesOverlap(inputCodes, nameCodes)

		jwScore := bestJWScore(wordTokens, nameTokens, wordLower, nameLower)

		if phoneticMatch {
			if jwScore >= m.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{name: name, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > best.score {
				best = candidate{name: name, score: jwScore, phonetic: false}
			}
		}
	}

	if best.name != "" {
		return best.name, best.score, true
	}
	return word, 0, false
}

// Addressee determines which participant an utterance is directed at. It
// scans the leading tokens (and leading bigrams, for two-word names) of the
// utterance against the participant names. An empty return means nobody was
// addressed by name and the group should treat the line as open-floor.
func (m *Matcher) Addressee(utterance string, names []string) (name string, confidence float64, ok bool) {
	tokens := strings.Fields(strings.ToLower(utterance))
	if len(tokens) == 0 || len(names) == 0 {
		return "", 0, false
	}

	limit := len(tokens)
	if limit > addressWindow {
		limit = addressWindow
	}

	var (
		bestName  string
		bestScore float64
	)
	for i := 0; i < limit; i++ {
		tok := strings.Trim(tokens[i], ".,!?;:'\"")
		if tok == "" {
			continue
		}
		if n, score, matched := m.Match(tok, names); matched && score > bestScore {
			bestName, bestScore = n, score
		}
		// Leading bigram for two-word names.
		if i+1 < len(tokens) {
			next := strings.Trim(tokens[i+1], ".,!?;:'\"")
			if n, score, matched := m.Match(tok+" "+next, names); matched && score > bestScore {
				bestName, bestScore = n, score
			}
		}
	}

	if bestName == "" {
		return "", 0, false
	}
	return bestName, bestScore, true
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (word too short or no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the input
// and the name across three strategies: full strings, space-stripped strings,
// and the best pairwise token score.
func bestJWScore(inputTokens, nameTokens []string, inputFull, nameFull string) float64 {
	score := matchr.JaroWinkler(inputFull, nameFull, false)

	if len(inputTokens) > 1 || len(nameTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(nameTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, nt := range nameTokens {
			if s := matchr.JaroWinkler(it, nt, false); s > score {
				score = s
			}
		}
	}

	return score
}
