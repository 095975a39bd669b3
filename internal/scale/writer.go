package scale

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

const defaultFlushThreshold = 100

// Writer queues store writes and lands them in batched transactions.
// Safe for concurrent use.
type Writer struct {
	ops       memory.BatchOps
	threshold int
	logger    *slog.Logger

	mu      sync.Mutex
	pending []memory.BatchWrite
}

// WriterOption configures a [Writer].
type WriterOption func(*Writer)

// WithFlushThreshold overrides the auto-flush queue length.
func WithFlushThreshold(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.threshold = n
		}
	}
}

// WithWriterLogger sets the writer logger.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWriter builds a writer over the store's batch operations.
func NewWriter(ops memory.BatchOps, opts ...WriterOption) *Writer {
	w := &Writer{
		ops:       ops,
		threshold: defaultFlushThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Queue adds a write to the pending batch, flushing when the queue reaches
// the threshold. A failed auto-flush requeues the batch and returns the
// error.
func (w *Writer) Queue(ctx context.Context, write memory.BatchWrite) error {
	w.mu.Lock()
	w.pending = append(w.pending, write)
	if len(w.pending) < w.threshold {
		w.mu.Unlock()
		return nil
	}
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	return w.flush(ctx, batch)
}

// Flush forces out everything pending.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	return w.flush(ctx, batch)
}

func (w *Writer) flush(ctx context.Context, batch []memory.BatchWrite) error {
	if len(batch) == 0 {
		return nil
	}
	if err := w.ops.FlushBatch(ctx, batch); err != nil {
		// The store rolled back; requeue so nothing is lost.
		w.mu.Lock()
		w.pending = append(batch, w.pending...)
		w.mu.Unlock()
		w.logger.Warn("batch flush failed, requeued",
			slog.Int("writes", len(batch)), slog.Any("error", err))
		return fmt.Errorf("flush %d writes: %w", len(batch), err)
	}
	return nil
}

// Pending reports the queued write count.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
