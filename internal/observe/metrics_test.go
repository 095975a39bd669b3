package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"duskfolk.reactive_cycle.duration", m.ReactiveCycleDuration},
		{"duskfolk.llm.duration", m.LLMDuration},
		{"duskfolk.world.tick.duration", m.WorldTickDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestLLMCallPurposeAttribute(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLLMCall(ctx, PurposeCognition, 0.8)
	m.RecordLLMCall(ctx, PurposeCognition, 1.2)
	m.RecordLLMCall(ctx, PurposeReflection, 0.4)

	rm := collect(t, reader)
	met := findMetric(rm, "duskfolk.llm.duration")
	if met == nil {
		t.Fatal("llm duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("llm duration is not a histogram")
	}
	if len(hist.DataPoints) != 2 {
		t.Fatalf("data points = %d, want 2 (one per purpose)", len(hist.DataPoints))
	}

	counts := make(map[string]uint64)
	for _, dp := range hist.DataPoints {
		purpose, _ := dp.Attributes.Value(attribute.Key("purpose"))
		counts[purpose.AsString()] = dp.Count
	}
	if counts[PurposeCognition] != 2 {
		t.Errorf("cognition count = %d, want 2", counts[PurposeCognition])
	}
	if counts[PurposeReflection] != 1 {
		t.Errorf("reflection count = %d, want 1", counts[PurposeReflection])
	}
}

func TestFallbackFrameCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFallbackFrame(ctx, "timeout")
	m.RecordFallbackFrame(ctx, "timeout")
	m.RecordFallbackFrame(ctx, "decode")

	rm := collect(t, reader)
	met := findMetric(rm, "duskfolk.fallback_frames")
	if met == nil {
		t.Fatal("fallback frames metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("fallback frames is not a sum")
	}

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("total fallback frames = %d, want 3", total)
	}
}

func TestCacheCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheHit(ctx)
	m.RecordCacheHit(ctx)
	m.RecordCacheMiss(ctx)

	rm := collect(t, reader)

	for _, tc := range []struct {
		name string
		want int64
	}{
		{"duskfolk.cache.hits", 2},
		{"duskfolk.cache.misses", 1},
	} {
		met := findMetric(rm, tc.name)
		if met == nil {
			t.Fatalf("metric %q not found", tc.name)
		}
		sum, ok := met.Data.(metricdata.Sum[int64])
		if !ok {
			t.Fatalf("metric %q is not a sum", tc.name)
		}
		if got := sum.DataPoints[0].Value; got != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestActiveAgentsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveAgents.Add(ctx, 5)
	m.ActiveAgents.Add(ctx, -2)

	rm := collect(t, reader)
	met := findMetric(rm, "duskfolk.active_agents")
	if met == nil {
		t.Fatal("active agents metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("active agents is not a sum")
	}
	if got := sum.DataPoints[0].Value; got != 3 {
		t.Errorf("active agents = %d, want 3", got)
	}
}

func TestBatchFlushSizeHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.BatchFlushSize.Record(ctx, 100)
	m.BatchFlushSize.Record(ctx, 37)

	rm := collect(t, reader)
	met := findMetric(rm, "duskfolk.batch.flush_size")
	if met == nil {
		t.Fatal("batch flush size metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[int64])
	if !ok {
		t.Fatal("batch flush size is not a histogram")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}
