// Package topics implements the conversational memory layer: NPCs extract
// memorable themes from what players say, retrieve them later scored against
// the current message, let them fade with time, and gossip the juiciest ones
// to befriended NPCs.
//
// The package is a policy layer over [memory.TopicStore]; all persistence
// semantics (natural-key reinforcement, idempotent shares, linear decay) live
// in the store. Randomness is injectable so sharing behaviour is
// deterministic under test.
package topics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

const (
	// relevantFloor drops topics too faded to surface in conversation.
	relevantFloor = 0.2

	// shareRelationGate is the minimum relation score before an agent gossips.
	shareRelationGate = 0.5

	// shareWeightGate is the minimum emotional weight for gossip-worthy topics.
	shareWeightGate = 0.6

	// sharedWeightFactor reduces the weight of secondhand information.
	sharedWeightFactor = 0.8

	// sharedTrustFactor is how much a listener credits a fellow NPC.
	sharedTrustFactor = 0.7

	// sharedInitialStrength is the starting strength of a shared topic.
	sharedInitialStrength = 0.8
)

// Scored is a retrieved topic annotated with its relevance to the current
// message and a clarity bucket derived from remaining strength.
type Scored struct {
	memory.Topic

	// Relevance is the final score in [0, 1].
	Relevance float64

	// Clarity is "vivid", "clear", or "vague".
	Clarity string
}

// Service is the topic memory engine. Safe for concurrent use.
type Service struct {
	store  memory.TopicStore
	social memory.SocialStore
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a [Service].
type Option func(*Service)

// WithRand injects a seeded random source for deterministic sharing.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService builds the topic engine over a topic store and the social store
// (needed for the relation gate on gossip).
func NewService(store memory.TopicStore, social memory.SocialStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		social: social,
		logger: slog.Default(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extract scans a player message for topic keywords and stores one topic per
// matched category. The topic content is the full message; its emotional
// weight is the category base plus 0.05 per additional matched keyword,
// capped at 1. Returns the stored topics.
func (s *Service) Extract(ctx context.Context, agentID, playerID, message string) ([]memory.Topic, error) {
	lower := strings.ToLower(message)
	var out []memory.Topic

	for _, cat := range memory.TopicCategories {
		cfg := categories[cat]
		matched := matchKeywords(cfg, lower)
		if len(matched) == 0 {
			continue
		}

		weight := min(1.0, cfg.baseWeight+0.05*float64(len(matched)-1))
		stored, err := s.store.UpsertTopic(ctx, memory.Topic{
			PlayerID:        playerID,
			AgentID:         agentID,
			Category:        cat,
			Content:         message,
			EmotionalWeight: weight,
			Keywords:        strings.Join(matched, ","),
			DecayRate:       decayRate(weight),
		})
		if err != nil {
			return out, fmt.Errorf("extract %s topic: %w", cat, err)
		}
		out = append(out, stored)
	}
	return out, nil
}

// decayRate derives a topic's daily decay from its emotional weight:
// important memories fade slower, floored at 0.02 per day.
func decayRate(weight float64) float64 {
	return max(0.02, 0.08-0.05*weight)
}

// Relevant retrieves the agent's strongest topics about a player and scores
// them against the current message. Topics below the strength floor are
// dropped; the rest come back ordered by combined relevance, strength, and
// weight, truncated to limit.
func (s *Service) Relevant(ctx context.Context, agentID, playerID, message string, limit int) ([]Scored, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.store.TopicsForPlayer(ctx, agentID, playerID, relevantFloor, limit*2)
	if err != nil {
		return nil, fmt.Errorf("relevant topics: %w", err)
	}

	lower := strings.ToLower(message)
	scored := make([]Scored, 0, len(rows))
	for _, t := range rows {
		var relevance float64
		for _, kw := range strings.Split(t.Keywords, ",") {
			if kw != "" && strings.Contains(lower, kw) {
				relevance += 0.3
			}
		}
		if t.EmotionalWeight >= 0.8 {
			relevance += 0.4
		}
		effective := relevance * t.Strength

		scored = append(scored, Scored{
			Topic:     t,
			Relevance: min(1.0, effective+t.EmotionalWeight*0.3),
			Clarity:   clarity(t.Strength),
		})
	}

	sortScored(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// clarity buckets remaining strength into how well the NPC remembers.
func clarity(strength float64) string {
	switch {
	case strength > 0.8:
		return "vivid"
	case strength > 0.5:
		return "clear"
	default:
		return "vague"
	}
}

// sortScored orders by combined relevance, strength, and weight, descending.
func sortScored(scored []Scored) {
	key := func(sc Scored) float64 {
		return sc.Relevance + sc.Strength*0.5 + sc.EmotionalWeight*0.3
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return key(scored[i]) > key(scored[j])
	})
}

// ReinforceByKeywords re-strengthens every stored topic whose keywords appear
// in the new message: hearing related talk refreshes the memory. Returns the
// number of topics reinforced.
func (s *Service) ReinforceByKeywords(ctx context.Context, agentID, playerID, message string) (int, error) {
	rows, err := s.store.TopicsForPlayer(ctx, agentID, playerID, 0, 200)
	if err != nil {
		return 0, fmt.Errorf("reinforce by keywords: %w", err)
	}

	lower := strings.ToLower(message)
	var reinforced int
	for _, t := range rows {
		if t.Strength >= 1.0 {
			continue
		}
		for _, kw := range strings.Split(t.Keywords, ",") {
			if kw == "" || !strings.Contains(lower, kw) {
				continue
			}
			if err := s.store.ReinforceTopic(ctx, t.ID); err != nil {
				return reinforced, fmt.Errorf("reinforce topic %d: %w", t.ID, err)
			}
			reinforced++
			break
		}
	}
	return reinforced, nil
}

// MarkReferenced records that the agent used a topic in dialogue, resetting
// its strength to full.
func (s *Service) MarkReferenced(ctx context.Context, topicID int64) error {
	return s.store.ReinforceTopic(ctx, topicID)
}

// Decay ages every topic by elapsed game time. Returns rows touched in the
// direct and shared tables.
func (s *Service) Decay(ctx context.Context, elapsed time.Duration) (direct, shared int64, err error) {
	direct, err = s.store.DecayTopics(ctx, elapsed)
	if err != nil {
		return 0, 0, err
	}
	shared, err = s.store.DecaySharedTopics(ctx, elapsed)
	if err != nil {
		return direct, 0, err
	}
	return direct, shared, nil
}

// Cleanup forgets topics that decayed below threshold.
func (s *Service) Cleanup(ctx context.Context, threshold float64) (int64, error) {
	return s.store.CleanupWeakTopics(ctx, threshold)
}

// AutoShare gossips from's most emotionally loaded topics to to. Sharing is
// gated on their relation (friends talk, strangers don't) and each candidate
// is proposed with probability relation·0.8, so close friends pass along
// almost everything. When playerID is non-empty only topics about that
// player are candidates (top 3); otherwise the agent's overall top 5.
// Returns the number of topics newly shared.
func (s *Service) AutoShare(ctx context.Context, from, to, playerID string) (int, error) {
	relation := 0.5
	rel, err := s.social.Relation(ctx, from, to)
	switch {
	case err == nil:
		relation = rel.Score
	case errors.Is(err, memory.ErrNotFound):
	default:
		return 0, fmt.Errorf("auto share: relation lookup: %w", err)
	}
	if relation < shareRelationGate {
		return 0, nil
	}

	candidates, err := s.shareCandidates(ctx, from, playerID)
	if err != nil {
		return 0, err
	}

	chance := relation * sharedWeightFactor
	var shared int
	for _, t := range candidates {
		if !s.roll(chance) {
			continue
		}
		_, err := s.store.ShareTopic(ctx, memory.SharedTopic{
			FromAgent:     from,
			ToAgent:       to,
			SourceTopicID: t.ID,
			PlayerID:      t.PlayerID,
			Content:       t.Content,
			Weight:        t.EmotionalWeight * sharedWeightFactor,
			TrustFactor:   sharedTrustFactor,
			Strength:      sharedInitialStrength,
		})
		if errors.Is(err, memory.ErrAlreadyShared) {
			continue
		}
		if err != nil {
			return shared, fmt.Errorf("auto share topic %d: %w", t.ID, err)
		}
		shared++
	}
	return shared, nil
}

// shareCandidates picks the gossip-worthy topics for one sharer.
func (s *Service) shareCandidates(ctx context.Context, from, playerID string) ([]memory.Topic, error) {
	all, err := s.store.TopicsByAgent(ctx, from, shareWeightGate, 50)
	if err != nil {
		return nil, fmt.Errorf("auto share: candidates: %w", err)
	}
	if playerID == "" {
		if len(all) > 5 {
			all = all[:5]
		}
		return all, nil
	}
	var scoped []memory.Topic
	for _, t := range all {
		if t.PlayerID == playerID {
			scoped = append(scoped, t)
		}
		if len(scoped) == 3 {
			break
		}
	}
	return scoped, nil
}

func (s *Service) roll(chance float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < chance
}
