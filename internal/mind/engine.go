package mind

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duskfolk/duskfolk/internal/persona"
	"github.com/duskfolk/duskfolk/pkg/memory"
	"github.com/duskfolk/duskfolk/pkg/provider/llm"
	"github.com/duskfolk/duskfolk/pkg/types"
)

const (
	// defaultCallTimeout bounds one model call. A cycle that outlives it
	// degrades to the fallback frame instead of blocking the mailbox.
	defaultCallTimeout = 30 * time.Second

	// decideTemperature is used for reactive cognition.
	decideTemperature = 0.7

	// reflectTemperature is used for background belief summarisation; lower
	// so reflections stay grounded in the memories they summarise.
	reflectTemperature = 0.3
)

// ErrNoProvider is returned by Reflect when the engine has no model backend.
var ErrNoProvider = errors.New("mind: no llm provider configured")

// Engine turns perceptions into cognitive frames through a language model.
// Safe for concurrent use.
type Engine struct {
	provider llm.Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures an [Engine].
type Option func(*Engine)

// WithTimeout overrides the per-call model deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine builds a cognitive engine over provider. A nil provider is
// allowed; every Decide then takes the fallback path, which keeps agents
// running in degraded mode when no backend is configured.
func NewEngine(provider llm.Provider, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		timeout:  defaultCallTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DecideInput is one reactive-cycle request.
type DecideInput struct {
	Persona    persona.Persona
	Traits     types.TraitSet
	Vitals     types.Vitals
	Emotional  types.EmotionalState
	Perception string
	Context    Context
}

// Decide runs one cognition call and returns the decoded frame. It never
// returns an unusable frame: any failure (no provider, deadline, transport,
// malformed or invalid JSON) yields the fallback frame with Fallback set and
// the cause as the second return value. Callers log the cause and must not
// persist anything derived from a fallback frame.
func (e *Engine) Decide(ctx context.Context, in DecideInput) (types.CognitiveFrame, error) {
	if e.provider == nil {
		return FallbackFrame(ErrNoProvider), ErrNoProvider
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt(in.Persona, in.Traits),
		Messages: []llm.Message{
			{Role: "user", Content: userPrompt(in.Perception, in.Vitals, in.Emotional, in.Context)},
		},
		Temperature: decideTemperature,
	})
	if err != nil {
		return FallbackFrame(err), err
	}

	frame, err := decodeFrame(resp.Content)
	if err != nil {
		e.logger.Warn("cognitive frame rejected",
			"agent", in.Persona.ID,
			"error", err)
		return FallbackFrame(err), err
	}
	return frame, nil
}

// Reflect summarises the given memories into a single-sentence belief. The
// caller stores the result; an empty memory slice returns "" without a model
// call.
func (e *Engine) Reflect(ctx context.Context, memories []memory.Memory) (string, error) {
	if len(memories) == 0 {
		return "", nil
	}
	if e.provider == nil {
		return "", ErrNoProvider
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "user", Content: reflectionPrompt(memories)},
		},
		Temperature: reflectTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("reflection call: %w", err)
	}

	belief := strings.TrimSpace(resp.Content)
	if belief == "" {
		return "", errors.New("reflection returned empty belief")
	}
	return belief, nil
}

// FallbackFrame is the degraded response used whenever cognition fails: the
// NPC goes quiet and guarded rather than silent or broken. Nothing derived
// from it is persisted.
func FallbackFrame(cause error) types.CognitiveFrame {
	msg := "unknown"
	if cause != nil {
		msg = cause.Error()
	}
	return types.CognitiveFrame{
		InternalReflection: fmt.Sprintf("[ERROR: %s] Defaulting to cautious behavior.", msg),
		Intent:             types.IntentGuard,
		Dialogue:           "...",
		Urgency:            0.5,
		EmotionalState:     "Confused",
		Fallback:           true,
	}
}

// wireFrame uses pointer fields so a missing required key is distinguishable
// from a present zero value.
type wireFrame struct {
	InternalReflection *string  `json:"internal_reflection"`
	Intent             *string  `json:"intent"`
	Dialogue           *string  `json:"dialogue"`
	Urgency            *float64 `json:"urgency"`
	TrustMod           float64  `json:"trust_mod"`
	EmotionalState     *string  `json:"emotional_state"`
}

// decodeFrame parses a model response into a validated cognitive frame.
// Markdown code fences around the JSON are tolerated; models add them even
// when told not to.
func decodeFrame(raw string) (types.CognitiveFrame, error) {
	var w wireFrame
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &w); err != nil {
		return types.CognitiveFrame{}, fmt.Errorf("decode frame: %w", err)
	}

	var missing []string
	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"internal_reflection", w.InternalReflection != nil},
		{"intent", w.Intent != nil},
		{"dialogue", w.Dialogue != nil},
		{"urgency", w.Urgency != nil},
		{"emotional_state", w.EmotionalState != nil},
	} {
		if !f.ok {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return types.CognitiveFrame{}, fmt.Errorf("frame missing required fields: %s", strings.Join(missing, ", "))
	}

	intent, ok := types.ParseIntent(*w.Intent)
	if !ok {
		return types.CognitiveFrame{}, fmt.Errorf("frame intent %q is not a valid intent", *w.Intent)
	}

	return types.CognitiveFrame{
		InternalReflection: *w.InternalReflection,
		Intent:             intent,
		Dialogue:           *w.Dialogue,
		Urgency:            memory.Clamp(*w.Urgency, 0, 1),
		TrustMod:           w.TrustMod,
		EmotionalState:     *w.EmotionalState,
	}, nil
}

// stripCodeFence removes a surrounding markdown fence (``` or ```json) from
// a model response, returning the inner text.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		// drop the language tag line ("json", "JSON", or empty)
		t = t[i+1:]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
