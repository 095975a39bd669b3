package scale

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

// cleanupThreshold is the strength below which optimize passes drop topics.
const cleanupThreshold = 0.05

// MaintenanceStore is the slice of the store the manager drives: batched
// writes, bulk rollups, mass decay, and planner upkeep. memory.Store
// satisfies it.
type MaintenanceStore interface {
	memory.BatchOps
	DecayTopics(ctx context.Context, elapsed time.Duration) (int64, error)
	DecaySharedTopics(ctx context.Context, elapsed time.Duration) (int64, error)
	CleanupWeakTopics(ctx context.Context, threshold float64) (int64, error)
	Analyze(ctx context.Context) error
}

// TickReport summarises one scaling tick.
type TickReport struct {
	AgentsDue     []string
	TopicsDecayed int64
	SharedDecayed int64
}

// OptimizeReport summarises one optimize pass.
type OptimizeReport struct {
	TopicsRemoved int64
	WritesFlushed int
}

// SystemStats aggregates the substrate's counters.
type SystemStats struct {
	Cache       CacheStats
	Tiers       TierStats
	Performance map[string]MetricStats
	PendingIO   int
}

// Manager composes the scaling substrate: one cache, one tier scheduler,
// one batching writer, one monitor, all over a single store handle.
type Manager struct {
	store   MaintenanceStore
	cache   *Cache
	tiers   *Tiers
	writer  *Writer
	monitor *Monitor
	logger  *slog.Logger
}

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithManagerLogger sets the manager logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithCache replaces the default cache.
func WithCache(c *Cache) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.cache = c
		}
	}
}

// WithWriter replaces the default writer.
func WithWriter(w *Writer) ManagerOption {
	return func(m *Manager) {
		if w != nil {
			m.writer = w
		}
	}
}

// NewManager wires the substrate over a store.
func NewManager(store MaintenanceStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:   store,
		tiers:   NewTiers(),
		monitor: NewMonitor(),
		logger:  slog.Default(),
	}
	m.cache = NewCache(WithCacheMonitor(m.monitor))
	m.writer = NewWriter(store)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Cache exposes the read cache.
func (m *Manager) Cache() *Cache { return m.cache }

// Tiers exposes the tier scheduler.
func (m *Manager) Tiers() *Tiers { return m.tiers }

// Writer exposes the batching writer.
func (m *Manager) Writer() *Writer { return m.writer }

// Monitor exposes the latency monitor.
func (m *Manager) Monitor() *Monitor { return m.monitor }

// RegisterAgent adds an agent to the tier scheduler.
func (m *Manager) RegisterAgent(agentID, zone string) {
	m.tiers.Register(agentID, zone)
}

// RecordInteraction promotes the agent to the active tier and drops its
// cached reads.
func (m *Manager) RecordInteraction(agentID string) {
	m.tiers.RecordInteraction(agentID)
	m.cache.InvalidatePrefix("agent:" + agentID)
}

// Fetch reads through the cache with request coalescing.
func (m *Manager) Fetch(key string, ttl time.Duration, fn func() (any, error)) (any, error) {
	return m.cache.Fetch(key, ttl, fn)
}

// QueueWrite defers a store write to the next batch flush.
func (m *Manager) QueueWrite(ctx context.Context, w memory.BatchWrite) error {
	return m.writer.Queue(ctx, w)
}

// AgentData fetches the bulk per-agent rollups in one store round trip.
func (m *Manager) AgentData(ctx context.Context, agentIDs []string) (map[string]memory.AgentAggregate, error) {
	defer m.monitor.Measure("bulk_agent_data")()
	aggs, err := m.store.AgentAggregates(ctx, agentIDs)
	if err != nil {
		return nil, fmt.Errorf("bulk agent data: %w", err)
	}
	return aggs, nil
}

// Tick runs one scaling tick: recompute tiers, pick the agents due this
// tick, apply mass topic decay for the elapsed window, and flush deferred
// writes.
func (m *Manager) Tick(ctx context.Context, elapsed time.Duration) (TickReport, error) {
	defer m.monitor.Measure("world_tick")()

	m.tiers.Recompute()
	report := TickReport{AgentsDue: m.tiers.DueAgents()}

	var err error
	if report.TopicsDecayed, err = m.store.DecayTopics(ctx, elapsed); err != nil {
		return report, fmt.Errorf("scale tick: decay topics: %w", err)
	}
	if report.SharedDecayed, err = m.store.DecaySharedTopics(ctx, elapsed); err != nil {
		return report, fmt.Errorf("scale tick: decay shared topics: %w", err)
	}
	if err := m.writer.Flush(ctx); err != nil {
		return report, fmt.Errorf("scale tick: %w", err)
	}
	return report, nil
}

// Optimize runs the maintenance pass: drop faded topics, flush pending
// writes, refresh planner statistics, and recompute tiers. Idempotent on
// unchanged data.
func (m *Manager) Optimize(ctx context.Context) (OptimizeReport, error) {
	defer m.monitor.Measure("optimize")()

	var report OptimizeReport
	report.WritesFlushed = m.writer.Pending()

	removed, err := m.store.CleanupWeakTopics(ctx, cleanupThreshold)
	if err != nil {
		return report, fmt.Errorf("optimize: cleanup: %w", err)
	}
	report.TopicsRemoved = removed

	if err := m.writer.Flush(ctx); err != nil {
		return report, fmt.Errorf("optimize: %w", err)
	}
	if err := m.store.Analyze(ctx); err != nil {
		return report, fmt.Errorf("optimize: analyze: %w", err)
	}
	m.tiers.Recompute()

	m.logger.Debug("optimize pass complete",
		slog.Int64("topics_removed", report.TopicsRemoved),
		slog.Int("writes_flushed", report.WritesFlushed))
	return report, nil
}

// Stats snapshots the whole substrate.
func (m *Manager) Stats() SystemStats {
	return SystemStats{
		Cache:       m.cache.Stats(),
		Tiers:       m.tiers.Stats(),
		Performance: m.monitor.AllStats(),
		PendingIO:   m.writer.Pending(),
	}
}
