// Package agent runs one autonomous NPC: a mailbox worker goroutine that
// owns all mutable state (live traits, vitals, emotion) and executes reactive
// cognition cycles, plus an autonomous ticker that feeds vitals decay and
// periodic reflection through the same mailbox. Because every mutation flows
// through the single worker, the agent needs no locks and external callers
// can never observe a half-updated NPC.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/duskfolk/duskfolk/internal/mind"
	"github.com/duskfolk/duskfolk/internal/persona"
	"github.com/duskfolk/duskfolk/internal/topics"
	"github.com/duskfolk/duskfolk/pkg/memory"
	"github.com/duskfolk/duskfolk/pkg/types"
)

const (
	// thinkScale shrinks the limbic think time so agents stay responsive:
	// a calm NPC's 2 s deliberation becomes a 200 ms pause.
	thinkScale = 0.1

	// vitalsTickInterval drives autonomous hunger/fatigue decay.
	vitalsTickInterval = time.Second

	// defaultReflectionInterval is how often the agent summarises recent
	// memories into a belief.
	defaultReflectionInterval = 300 * time.Second

	// Context assembly limits.
	contextMemories = 3
	contextBeliefs  = 3
	contextTopics   = 5
)

// ErrStopped is returned when a request reaches an agent that has shut down.
var ErrStopped = errors.New("agent: stopped")

// ErrNotStarted is returned when a request reaches an agent before Start.
var ErrNotStarted = errors.New("agent: not started")

// Vault is the slice of the store an agent writes through: private memories,
// beliefs, the trait ledger, and the shared topics others told it.
// memory.Store satisfies it.
type Vault interface {
	memory.Vault
	SharedTopicsFor(ctx context.Context, agentID, playerID string, limit int) ([]memory.SharedTopic, error)
}

// TopicSource retrieves the player-scoped topics for context assembly.
// *topics.Service satisfies it.
type TopicSource interface {
	Relevant(ctx context.Context, agentID, playerID, message string, limit int) ([]topics.Scored, error)
}

// SocialSource supplies rumors and reputation for context assembly.
// *social.Service satisfies it.
type SocialSource interface {
	RumorsHeard(ctx context.Context, agentID, aboutPlayer string) ([]memory.Rumor, []memory.RumorKnowledge, error)
	ReputationOf(ctx context.Context, playerID, agentID string) (float64, error)
}

// ActionInput is one perception delivered to the agent's reactive cycle.
// The group layer composes its context block directly into Perception.
type ActionInput struct {
	PlayerID   string
	PlayerName string
	Perception string
}

// ActionResult is the outcome of one reactive cycle: the cognitive frame and
// a snapshot of the agent's body and personality after the cycle.
type ActionResult struct {
	Frame     types.CognitiveFrame
	Vitals    types.Vitals
	Emotional types.EmotionalState
	Traits    types.TraitSet
}

// Status is a point-in-time snapshot of the agent.
type Status struct {
	ID        string
	Name      string
	Role      string
	Location  string
	Faction   string
	Vitals    types.Vitals
	Emotional types.EmotionalState
	Traits    types.TraitSet
}

// mailbox message types; each carries its own reply channel.
type actionMsg struct {
	in    ActionInput
	ctx   context.Context
	reply chan actionReply
}

type actionReply struct {
	result ActionResult
	err    error
}

type statusMsg struct {
	reply chan Status
}

type vitalsMsg struct {
	vitals types.Vitals
	reply  chan struct{}
}

type decayMsg struct {
	elapsed time.Duration
}

type reflectMsg struct{}

// Agent is one running NPC. Construct with New, then Start. All exported
// methods are safe for concurrent use; they submit work to the mailbox and
// wait.
type Agent struct {
	id      string
	persona persona.Persona
	engine  *mind.Engine
	vault   Vault
	topics  TopicSource
	social  SocialSource
	logger  *slog.Logger

	reflectionInterval time.Duration

	mailbox chan any
	started chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc

	// Worker-owned; never touched outside the mailbox goroutine after Start.
	traits types.TraitSet
	limbic *mind.Limbic
}

// Option configures an [Agent].
type Option func(*Agent)

// WithLogger sets the agent logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithReflectionInterval overrides the background reflection cadence.
func WithReflectionInterval(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.reflectionInterval = d
		}
	}
}

// New builds an agent from its persona. The agent does nothing until Start.
func New(p persona.Persona, engine *mind.Engine, vault Vault, topicSrc TopicSource, socialSrc SocialSource, opts ...Option) *Agent {
	a := &Agent{
		id:                 p.ID,
		persona:            p,
		engine:             engine,
		vault:              vault,
		topics:             topicSrc,
		social:             socialSrc,
		logger:             slog.Default(),
		reflectionInterval: defaultReflectionInterval,
		mailbox:            make(chan any),
		started:            make(chan struct{}),
		done:               make(chan struct{}),
		traits:             p.TraitSet(),
	}
	a.limbic = mind.NewLimbic(p.InitialVitals, p.Mood())
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(slog.String("agent", a.id))
	return a
}

// ID returns the agent's identifier.
func (a *Agent) ID() string { return a.id }

// Persona returns the immutable persona the agent was built from.
func (a *Agent) Persona() persona.Persona { return a.persona }

// Start seeds the persona's initial memories and launches the mailbox worker
// and the autonomous ticker. Calling Start twice is an error.
func (a *Agent) Start(ctx context.Context) error {
	select {
	case <-a.started:
		return errors.New("agent: already started")
	default:
	}

	for _, seed := range a.persona.InitialMemories {
		strength := seed.Strength
		if strength == 0 {
			strength = 0.7
		}
		_, err := a.vault.AppendMemory(ctx, memory.Memory{
			AgentID:  a.id,
			Kind:     seed.Kind,
			Content:  seed.Content,
			Strength: strength,
		})
		if err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	close(a.started)

	go a.work(runCtx)
	go a.autonomous(runCtx)

	a.logger.Info("agent started",
		slog.String("role", a.persona.Role),
		slog.String("location", a.persona.Location))
	return nil
}

// Stop shuts the agent down. In-flight cycles abandon at the next suspension
// point; later submissions fail with ErrStopped. Stop waits for the worker to
// exit or ctx to expire.
func (a *Agent) Stop(ctx context.Context) error {
	select {
	case <-a.started:
	default:
		return ErrNotStarted
	}
	a.cancel()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Act runs one reactive cycle for a player perception and returns the frame
// plus post-cycle snapshots.
func (a *Agent) Act(ctx context.Context, in ActionInput) (ActionResult, error) {
	msg := actionMsg{in: in, ctx: ctx, reply: make(chan actionReply, 1)}
	if err := a.submit(ctx, msg); err != nil {
		return ActionResult{}, err
	}
	select {
	case r := <-msg.reply:
		return r.result, r.err
	case <-a.done:
		return ActionResult{}, ErrStopped
	case <-ctx.Done():
		return ActionResult{}, ctx.Err()
	}
}

// Status snapshots the agent's current state.
func (a *Agent) Status(ctx context.Context) (Status, error) {
	msg := statusMsg{reply: make(chan Status, 1)}
	if err := a.submit(ctx, msg); err != nil {
		return Status{}, err
	}
	select {
	case s := <-msg.reply:
		return s, nil
	case <-a.done:
		return Status{}, ErrStopped
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// ForceVitals overwrites the agent's vitals. Test and scenario hook; the
// write still flows through the mailbox so ownership rules hold.
func (a *Agent) ForceVitals(ctx context.Context, v types.Vitals) error {
	msg := vitalsMsg{vitals: v, reply: make(chan struct{}, 1)}
	if err := a.submit(ctx, msg); err != nil {
		return err
	}
	select {
	case <-msg.reply:
		return nil
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Agent) submit(ctx context.Context, msg any) error {
	select {
	case <-a.started:
	default:
		return ErrNotStarted
	}
	select {
	case <-a.done:
		return ErrStopped
	default:
	}
	select {
	case a.mailbox <- msg:
		return nil
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
