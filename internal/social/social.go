// Package social manages the player-facing social fabric: player sessions,
// per-agent reputation, the action log, the gossip/rumor mill, and the
// inter-agent relationship graph.
//
// Reputation has exactly one write path: the trust_mod resolved from a
// cognitive frame, applied through [Service.ApplyTrust]. Everything else
// (global reputation, rumor polarity) derives from those writes.
package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

// Service is the social graph engine. Safe for concurrent use.
type Service struct {
	store  memory.SocialStore
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a [Service].
type Option func(*Service)

// WithRand injects a seeded random source for deterministic rumor content
// and belief levels.
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

// NewService builds the social engine over a social store.
func NewService(store memory.SocialStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Players and reputation
// ─────────────────────────────────────────────────────────────────────────────

// GetOrCreatePlayer resolves a player session, creating it on first contact.
// A missing display name defaults to Player_<first 8 chars of the ID>.
func (s *Service) GetOrCreatePlayer(ctx context.Context, playerID, playerName string) (memory.Player, error) {
	if playerName == "" {
		playerName = defaultPlayerName(playerID)
	}
	p, err := s.store.TouchPlayer(ctx, playerID, playerName)
	if err != nil {
		return memory.Player{}, fmt.Errorf("get or create player: %w", err)
	}
	return p, nil
}

func defaultPlayerName(playerID string) string {
	short := playerID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Player_" + short
}

// ApplyTrust applies a resolved trust_mod to the (player, agent) reputation
// edge. This is the only reputation write path in the runtime.
func (s *Service) ApplyTrust(ctx context.Context, playerID, agentID string, trustMod float64) (memory.ReputationEdge, error) {
	edge, err := s.store.AdjustReputation(ctx, playerID, agentID, trustMod)
	if err != nil {
		return memory.ReputationEdge{}, fmt.Errorf("apply trust: %w", err)
	}
	return edge, nil
}

// ReputationOf returns a player's standing with one agent, 0 for a pair that
// has never interacted.
func (s *Service) ReputationOf(ctx context.Context, playerID, agentID string) (float64, error) {
	edge, err := s.store.Reputation(ctx, playerID, agentID)
	if errors.Is(err, memory.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reputation of: %w", err)
	}
	return edge.Score, nil
}

// LogAction appends one player interaction to the log.
func (s *Service) LogAction(ctx context.Context, playerID, agentID, action, response string, repDelta float64) error {
	_, err := s.store.LogAction(ctx, memory.ActionRecord{
		PlayerID: playerID,
		AgentID:  agentID,
		Action:   action,
		Response: response,
		RepDelta: repDelta,
	})
	if err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Rumors
// ─────────────────────────────────────────────────────────────────────────────

var (
	positiveRumorTemplates = []string{
		"%s helped out at %s's location. Seems trustworthy.",
		"Heard %s did something good. Maybe they're alright.",
		"%s showed respect. Not like the usual troublemakers.",
	}
	negativeRumorTemplates = []string{
		"%s caused trouble near %s. Keep an eye on them.",
		"Watch out for %s. They're not to be trusted.",
		"%s acted suspiciously. Might be dangerous.",
	}
	neutralRumorTemplates = []string{
		"%s passed through. Nothing special.",
		"Saw %s around. Seemed ordinary enough.",
	}
)

// AuthorRumor creates a rumor about a player from one interaction. Polarity
// is judged from the outcome label and the action text; truthfulness is
// sampled from U(0.7, 1.0) because retellings exaggerate. The author knows
// its own rumor at full belief.
func (s *Service) AuthorRumor(ctx context.Context, aboutPlayer, authorAgent, action, outcome string) (memory.Rumor, error) {
	content := s.rumorContent(aboutPlayer, authorAgent, action, outcome)

	r, err := s.store.CreateRumor(ctx, memory.Rumor{
		ID:           uuid.NewString()[:8],
		AboutPlayer:  aboutPlayer,
		Content:      content,
		Truthfulness: s.uniform(0.7, 1.0),
		AuthorAgent:  authorAgent,
	})
	if err != nil {
		return memory.Rumor{}, fmt.Errorf("author rumor: %w", err)
	}
	return r, nil
}

func (s *Service) rumorContent(aboutPlayer, authorAgent, action, outcome string) string {
	actionLower := strings.ToLower(action)
	outcomeLower := strings.ToLower(outcome)

	switch {
	case strings.Contains(outcomeLower, "positive") || strings.Contains(actionLower, "help"):
		t := s.pick(len(positiveRumorTemplates))
		if t == 0 {
			return fmt.Sprintf(positiveRumorTemplates[0], aboutPlayer, authorAgent)
		}
		return fmt.Sprintf(positiveRumorTemplates[t], aboutPlayer)
	case strings.Contains(outcomeLower, "negative") || strings.Contains(actionLower, "threat"):
		t := s.pick(len(negativeRumorTemplates))
		if t == 0 {
			return fmt.Sprintf(negativeRumorTemplates[0], aboutPlayer, authorAgent)
		}
		return fmt.Sprintf(negativeRumorTemplates[t], aboutPlayer)
	default:
		return fmt.Sprintf(neutralRumorTemplates[s.pick(len(neutralRumorTemplates))], aboutPlayer)
	}
}

// Spread tells one rumor from one agent to another. The listener believes it
// somewhere between half and strongly, U(0.5, 0.9). Spreading a rumor the
// listener already knows is a silent no-op.
func (s *Service) Spread(ctx context.Context, rumorID, fromAgent, toAgent string) error {
	err := s.store.SpreadRumor(ctx, memory.RumorKnowledge{
		AgentID:   toAgent,
		RumorID:   rumorID,
		Belief:    s.uniform(0.5, 0.9),
		HeardFrom: fromAgent,
	})
	if errors.Is(err, memory.ErrAlreadyHeard) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("spread rumor: %w", err)
	}
	return nil
}

// SpreadAllRumors passes everything from knows on to to. Returns how many
// rumors were new to the listener.
func (s *Service) SpreadAllRumors(ctx context.Context, fromAgent, toAgent string) (int, error) {
	rumors, _, err := s.store.RumorsKnownBy(ctx, fromAgent, "")
	if err != nil {
		return 0, fmt.Errorf("spread all rumors: %w", err)
	}

	var spread int
	for _, r := range rumors {
		err := s.store.SpreadRumor(ctx, memory.RumorKnowledge{
			AgentID:   toAgent,
			RumorID:   r.ID,
			Belief:    s.uniform(0.5, 0.9),
			HeardFrom: fromAgent,
		})
		if errors.Is(err, memory.ErrAlreadyHeard) {
			continue
		}
		if err != nil {
			return spread, fmt.Errorf("spread all rumors: %w", err)
		}
		spread++
	}
	return spread, nil
}

// RumorsHeard lists the rumors an agent knows, optionally scoped to one
// player, joined with the agent's belief in each.
func (s *Service) RumorsHeard(ctx context.Context, agentID, aboutPlayer string) ([]memory.Rumor, []memory.RumorKnowledge, error) {
	return s.store.RumorsKnownBy(ctx, agentID, aboutPlayer)
}

// ─────────────────────────────────────────────────────────────────────────────
// Relations
// ─────────────────────────────────────────────────────────────────────────────

// Relation returns the relationship edge between two agents, defaulting to a
// neutral 0.5 when they have never interacted.
func (s *Service) Relation(ctx context.Context, agentA, agentB string) (memory.Relation, error) {
	r, err := s.store.Relation(ctx, agentA, agentB)
	if errors.Is(err, memory.ErrNotFound) {
		a, b := agentA, agentB
		if b < a {
			a, b = b, a
		}
		return memory.Relation{AgentA: a, AgentB: b, Score: 0.5}, nil
	}
	if err != nil {
		return memory.Relation{}, fmt.Errorf("relation: %w", err)
	}
	return r, nil
}

// AdjustRelation shifts the relationship between two agents, recording a
// shared experience.
func (s *Service) AdjustRelation(ctx context.Context, agentA, agentB string, delta float64) (memory.Relation, error) {
	r, err := s.store.UpsertRelation(ctx, agentA, agentB, delta, true)
	if err != nil {
		return memory.Relation{}, fmt.Errorf("adjust relation: %w", err)
	}
	return r, nil
}

// RelationsOf lists every relationship edge touching one agent.
func (s *Service) RelationsOf(ctx context.Context, agentID string) ([]memory.Relation, error) {
	return s.store.RelationsOf(ctx, agentID)
}

// ─────────────────────────────────────────────────────────────────────────────
// RNG helpers
// ─────────────────────────────────────────────────────────────────────────────

func (s *Service) uniform(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Service) pick(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}
