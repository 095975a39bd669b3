// Package observe provides application-wide observability primitives for the
// duskfolk runtime: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all duskfolk metrics.
const meterName = "github.com/duskfolk/duskfolk"

// LLM call purposes, used as the "purpose" attribute on LLM metrics.
const (
	PurposeCognition     = "cognition"
	PurposeReflection    = "reflection"
	PurposeOrchestration = "orchestration"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ReactiveCycleDuration tracks full perceive→respond cycle latency.
	ReactiveCycleDuration metric.Float64Histogram

	// LLMDuration tracks model call latency. Use with attribute:
	//   attribute.String("purpose", PurposeCognition|PurposeReflection|PurposeOrchestration)
	LLMDuration metric.Float64Histogram

	// WorldTickDuration tracks world simulator tick latency.
	WorldTickDuration metric.Float64Histogram

	// --- Counters ---

	// CacheHits and CacheMisses count agent-context cache outcomes.
	CacheHits   metric.Int64Counter
	CacheMisses metric.Int64Counter

	// FallbackFrames counts cognitive cycles that degraded to the fallback
	// frame. Use with attribute: attribute.String("cause", ...).
	FallbackFrames metric.Int64Counter

	// Interactions counts player-agent interactions. Use with attribute:
	//   attribute.String("agent_id", ...)
	Interactions metric.Int64Counter

	// --- Batch writer ---

	// BatchFlushSize records the number of writes per batch flush.
	BatchFlushSize metric.Int64Histogram

	// --- Gauges ---

	// ActiveAgents tracks the number of currently running agents.
	ActiveAgents metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The low
// end covers cache-served cycles, the high end slow model calls.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ReactiveCycleDuration, err = m.Float64Histogram("duskfolk.reactive_cycle.duration",
		metric.WithDescription("Latency of a full perceive-respond cognitive cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("duskfolk.llm.duration",
		metric.WithDescription("Latency of model calls by purpose."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.WorldTickDuration, err = m.Float64Histogram("duskfolk.world.tick.duration",
		metric.WithDescription("Latency of one world simulator tick."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CacheHits, err = m.Int64Counter("duskfolk.cache.hits",
		metric.WithDescription("Agent context cache hits."),
	); err != nil {
		return nil, err
	}
	if met.CacheMisses, err = m.Int64Counter("duskfolk.cache.misses",
		metric.WithDescription("Agent context cache misses."),
	); err != nil {
		return nil, err
	}
	if met.FallbackFrames, err = m.Int64Counter("duskfolk.fallback_frames",
		metric.WithDescription("Cognitive cycles degraded to the fallback frame, by cause."),
	); err != nil {
		return nil, err
	}
	if met.Interactions, err = m.Int64Counter("duskfolk.interactions",
		metric.WithDescription("Player-agent interactions by agent ID."),
	); err != nil {
		return nil, err
	}

	// Batch writer.
	if met.BatchFlushSize, err = m.Int64Histogram("duskfolk.batch.flush_size",
		metric.WithDescription("Number of deferred writes per batch flush."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveAgents, err = m.Int64UpDownCounter("duskfolk.active_agents",
		metric.WithDescription("Number of currently running agents."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("duskfolk.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordLLMCall records a model call duration with its purpose attribute.
func (m *Metrics) RecordLLMCall(ctx context.Context, purpose string, seconds float64) {
	m.LLMDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("purpose", purpose)),
	)
}

// RecordFallbackFrame records one degraded cognitive cycle by cause.
func (m *Metrics) RecordFallbackFrame(ctx context.Context, cause string) {
	m.FallbackFrames.Add(ctx, 1,
		metric.WithAttributes(attribute.String("cause", cause)),
	)
}

// RecordInteraction records one player-agent interaction.
func (m *Metrics) RecordInteraction(ctx context.Context, agentID string) {
	m.Interactions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("agent_id", agentID)),
	)
}

// RecordCacheHit and RecordCacheMiss increment the cache outcome counters.
func (m *Metrics) RecordCacheHit(ctx context.Context)  { m.CacheHits.Add(ctx, 1) }
func (m *Metrics) RecordCacheMiss(ctx context.Context) { m.CacheMisses.Add(ctx, 1) }
