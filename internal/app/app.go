// Package app wires all duskfolk subsystems into a running service.
//
// The App struct owns the full lifecycle: New constructs and connects every
// subsystem, Run serves the ops HTTP endpoint and the background loops, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore, mock LLM
// providers). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/duskfolk/duskfolk/internal/agent"
	"github.com/duskfolk/duskfolk/internal/civ"
	"github.com/duskfolk/duskfolk/internal/config"
	"github.com/duskfolk/duskfolk/internal/fleet"
	"github.com/duskfolk/duskfolk/internal/group"
	"github.com/duskfolk/duskfolk/internal/health"
	"github.com/duskfolk/duskfolk/internal/mind"
	"github.com/duskfolk/duskfolk/internal/observe"
	"github.com/duskfolk/duskfolk/internal/persona"
	"github.com/duskfolk/duskfolk/internal/resilience"
	"github.com/duskfolk/duskfolk/internal/scale"
	"github.com/duskfolk/duskfolk/internal/social"
	"github.com/duskfolk/duskfolk/internal/surface"
	"github.com/duskfolk/duskfolk/internal/topics"
	"github.com/duskfolk/duskfolk/pkg/memory"
	"github.com/duskfolk/duskfolk/pkg/memory/sqlite"
	"github.com/duskfolk/duskfolk/pkg/provider/llm"
)

// groupSweepInterval is how often idle conversations are swept.
const groupSweepInterval = time.Minute

// App owns all subsystem lifetimes.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	store    memory.Store
	provider llm.Provider
	engine   *mind.Engine
	personas *persona.Registry
	social   *social.Service
	topics   *topics.Service

	quests    *civ.Quests
	goals     *civ.Goals
	chains    *civ.Chains
	trade     *civ.Trade
	territory *civ.Territory

	scaling    *scale.Manager
	fleet      *fleet.Coordinator
	groups     *group.Manager
	dispatcher *surface.Dispatcher

	httpSrv *http.Server

	subMu  sync.Mutex
	subSeq int
	subs   map[string]surface.Subscription

	// closers run in reverse-init order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of opening the SQLite database from
// config.
func WithStore(s memory.Store) Option {
	return func(a *App) { a.store = s }
}

// WithLogger sets the application logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// New wires every subsystem together. The provider is the cognition backend
// built by main from the config registry; nil is allowed and leaves every
// agent on the fallback frame path.
func New(ctx context.Context, cfg *config.Config, provider llm.Provider, opts ...Option) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: slog.Default(),
		subs:   make(map[string]surface.Subscription),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Persistent store ──────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Cognition engine ──────────────────────────────────────────────
	a.initCognition(provider)

	// ── 3. Personas ──────────────────────────────────────────────────────
	if err := a.initPersonas(); err != nil {
		return nil, fmt.Errorf("app: init personas: %w", err)
	}

	// ── 4. Social graph + topic memory ───────────────────────────────────
	a.social = social.NewService(a.store, social.WithLogger(a.logger))
	a.topics = topics.NewService(a.store, a.store, topics.WithLogger(a.logger))

	// ── 5. Civilisation state machines ───────────────────────────────────
	a.quests = civ.NewQuests(a.store, a.social, civ.WithQuestsLogger(a.logger))
	a.goals = civ.NewGoals(civ.WithGoalsLogger(a.logger))
	a.chains = civ.NewChains(civ.WithChainsLogger(a.logger))
	a.trade = civ.NewTrade(civ.WithTradeLogger(a.logger))
	a.territory = civ.NewTerritory(civ.WithTerritoryLogger(a.logger))

	// ── 6. Scaling substrate ─────────────────────────────────────────────
	a.initScaling()

	// ── 7. Fleet coordinator ─────────────────────────────────────────────
	if err := a.initFleet(); err != nil {
		return nil, fmt.Errorf("app: init fleet: %w", err)
	}

	// ── 8. Conversation groups ───────────────────────────────────────────
	a.groups = group.NewManager(a.fleet, a.provider, group.WithLogger(a.logger))

	// ── 9. Operation surface ─────────────────────────────────────────────
	a.dispatcher = surface.NewDispatcher(surface.WithLogger(a.logger))
	if err := a.registerOperations(); err != nil {
		return nil, fmt.Errorf("app: register operations: %w", err)
	}

	// ── 10. Ops HTTP server ──────────────────────────────────────────────
	a.initOpsServer()

	return a, nil
}

// Dispatcher exposes the operation surface for the embedding transport.
func (a *App) Dispatcher() *surface.Dispatcher { return a.dispatcher }

// Fleet exposes the coordinator, mainly for tests.
func (a *App) Fleet() *fleet.Coordinator { return a.fleet }

// initStore opens the SQLite database unless a store was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	path := a.cfg.Store.Path
	if path == "" {
		path = "duskfolk.db"
	}
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	a.logger.Info("store opened", slog.String("path", path))
	return nil
}

// initCognition wraps the backend in a circuit breaker and builds the
// decision engine. A nil provider is kept nil: the engine then serves the
// fallback frame and the population runs on cautious defaults.
func (a *App) initCognition(provider llm.Provider) {
	a.provider = provider
	if provider != nil {
		a.provider = resilience.NewBreakerProvider(provider, resilience.CircuitBreakerConfig{
			Name: "llm",
		})
	}

	var engineOpts []mind.Option
	if a.cfg.LLM.Timeout > 0 {
		engineOpts = append(engineOpts, mind.WithTimeout(a.cfg.LLM.Timeout))
	}
	engineOpts = append(engineOpts, mind.WithLogger(a.logger))
	a.engine = mind.NewEngine(a.provider, engineOpts...)
}

// initPersonas loads persona definitions from the configured directory.
func (a *App) initPersonas() error {
	a.personas = persona.NewRegistry()
	if a.cfg.Personas.Dir == "" {
		return nil
	}
	n, err := a.personas.LoadDir(a.cfg.Personas.Dir)
	if err != nil {
		return err
	}
	a.logger.Info("personas loaded", slog.String("dir", a.cfg.Personas.Dir), slog.Int("count", n))
	return nil
}

// initScaling builds the cache, batch writer, and tier scheduler.
func (a *App) initScaling() {
	var cacheOpts []scale.CacheOption
	if a.cfg.Scaling.CacheSize > 0 {
		cacheOpts = append(cacheOpts, scale.WithCacheSize(a.cfg.Scaling.CacheSize))
	}
	if a.cfg.Scaling.CacheTTL > 0 {
		cacheOpts = append(cacheOpts, scale.WithCacheTTL(a.cfg.Scaling.CacheTTL))
	}

	var writerOpts []scale.WriterOption
	if a.cfg.Scaling.BatchSize > 0 {
		writerOpts = append(writerOpts, scale.WithFlushThreshold(a.cfg.Scaling.BatchSize))
	}
	writerOpts = append(writerOpts, scale.WithWriterLogger(a.logger))

	a.scaling = scale.NewManager(a.store,
		scale.WithManagerLogger(a.logger),
		scale.WithCache(scale.NewCache(cacheOpts...)),
		scale.WithWriter(scale.NewWriter(a.store, writerOpts...)),
	)

	// Flush anything still queued on the way down.
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.scaling.Writer().Flush(ctx)
	})
}

// initFleet assembles the coordinator over every service built so far.
func (a *App) initFleet() error {
	var agentOpts []agent.Option
	if a.cfg.Agents.ReflectionInterval > 0 {
		agentOpts = append(agentOpts, agent.WithReflectionInterval(a.cfg.Agents.ReflectionInterval))
	}

	c, err := fleet.New(fleet.Deps{
		Store:     a.store,
		Engine:    a.engine,
		Personas:  a.personas,
		Social:    a.social,
		Topics:    a.topics,
		Quests:    a.quests,
		Goals:     a.goals,
		Chains:    a.chains,
		Trade:     a.trade,
		Territory: a.territory,
		Scale:     a.scaling,
	},
		fleet.WithLogger(a.logger),
		fleet.WithAgentOptions(agentOpts...),
	)
	if err != nil {
		return err
	}
	a.fleet = c
	return nil
}

// initOpsServer builds the health + metrics endpoint. This is the only
// listener the module opens; game traffic arrives through the dispatcher.
func (a *App) initOpsServer() {
	if a.cfg.Server.ListenAddr == "" {
		return
	}

	mux := http.NewServeMux()
	checker := health.New(
		health.StoreChecker(a.store.Ping),
		health.ProviderChecker(a.cfg.LLM.Provider.Name != "", a.provider),
	)
	checker.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	a.httpSrv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Run starts the ops server and the background loops, then blocks until ctx
// is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.httpSrv != nil {
		go func() {
			a.logger.Info("ops server listening", slog.String("addr", a.httpSrv.Addr))
			if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("ops server failed", slog.Any("error", err))
			}
		}()
	}

	if a.cfg.World.AutoStart == nil || *a.cfg.World.AutoStart {
		if err := a.fleet.StartWorld(a.cfg.World.TimeScale, a.cfg.World.TickInterval); err != nil {
			return fmt.Errorf("app: start world: %w", err)
		}
	}

	go a.sweepGroups(ctx)

	a.logger.Info("duskfolk running",
		slog.Int("operations", len(a.dispatcher.Kinds())),
		slog.Int("personas", len(a.personas.List())))
	<-ctx.Done()
	return ctx.Err()
}

// sweepGroups periodically ends idle conversations.
func (a *App) sweepGroups(ctx context.Context) {
	ticker := time.NewTicker(groupSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.groups.Cleanup(); n > 0 {
				a.logger.Debug("conversations swept", slog.Int("count", n))
			}
		}
	}
}

// Shutdown stops the world, the agents, the ops server, and finally the
// store. It respects the context deadline: when ctx expires, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down")

		if err := a.fleet.StopWorld(); err != nil && err != fleet.ErrWorldNotRunning {
			a.logger.Warn("world stop error", slog.Any("error", err))
		}
		if err := a.fleet.StopAll(ctx); err != nil {
			a.logger.Warn("agent stop error", slog.Any("error", err))
		}
		a.cancelSubscriptions()
		if a.httpSrv != nil {
			if err := a.httpSrv.Shutdown(ctx); err != nil {
				a.logger.Warn("ops server shutdown error", slog.Any("error", err))
			}
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", slog.Int("remaining", i+1))
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.logger.Warn("closer error", slog.Int("index", i), slog.Any("error", err))
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}

// cancelSubscriptions drops every live event subscription.
func (a *App) cancelSubscriptions() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for id, sub := range a.subs {
		sub.Cancel()
		delete(a.subs, id)
	}
}
