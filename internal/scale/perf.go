package scale

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 1000

// MetricStats summarises one metric's recent samples. Percentiles fall back
// to the max until enough samples accumulate (p95 needs >20, p99 >100).
type MetricStats struct {
	Count int
	Avg   float64
	Min   float64
	Max   float64
	P50   float64
	P95   float64
	P99   float64
}

// Monitor records per-metric latency samples in fixed-size rings.
// Safe for concurrent use.
type Monitor struct {
	mu      sync.Mutex
	metrics map[string]*ring
}

type ring struct {
	samples []float64
	next    int
	full    bool
}

func (r *ring) add(v float64) {
	if len(r.samples) < maxSamples {
		r.samples = append(r.samples, v)
		return
	}
	r.samples[r.next] = v
	r.next = (r.next + 1) % maxSamples
	r.full = true
}

// NewMonitor builds an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{metrics: make(map[string]*ring)}
}

// Record adds one sample, keeping only the newest 1000 per metric.
func (m *Monitor) Record(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.metrics[name]
	if !ok {
		r = &ring{}
		m.metrics[name] = r
	}
	r.add(value)
}

// Measure returns a stop function that records the elapsed seconds since
// the call:
//
//	defer monitor.Measure("world_tick")()
func (m *Monitor) Measure(name string) func() {
	start := time.Now()
	return func() {
		m.Record(name, time.Since(start).Seconds())
	}
}

// Stats summarises one metric. A metric with no samples returns the zero
// value.
func (m *Monitor) Stats(name string) MetricStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.metrics[name]
	if !ok || len(r.samples) == 0 {
		return MetricStats{}
	}
	return summarise(r.samples)
}

// AllStats summarises every metric.
func (m *Monitor) AllStats() map[string]MetricStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]MetricStats, len(m.metrics))
	for name, r := range m.metrics {
		if len(r.samples) > 0 {
			out[name] = summarise(r.samples)
		}
	}
	return out
}

func summarise(samples []float64) MetricStats {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	n := len(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}

	stats := MetricStats{
		Count: n,
		Avg:   sum / float64(n),
		Min:   sorted[0],
		Max:   sorted[n-1],
		P50:   sorted[n/2],
		P95:   sorted[n-1],
		P99:   sorted[n-1],
	}
	if n > 20 {
		stats.P95 = sorted[n*95/100]
	}
	if n > 100 {
		stats.P99 = sorted[n*99/100]
	}
	return stats
}
