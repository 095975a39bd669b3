package scale

import (
	"context"
	"errors"
	"testing"

	"github.com/duskfolk/duskfolk/pkg/memory"
	"github.com/duskfolk/duskfolk/pkg/memory/mock"
)

func memWrite(agentID, content string) memory.BatchWrite {
	return memory.BatchWrite{
		Memory: &memory.Memory{
			AgentID: agentID,
			Kind:    memory.KindEpisodic,
			Content: content,
		},
	}
}

func TestWriterAutoFlushAtThreshold(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()
	w := NewWriter(store, WithFlushThreshold(3))

	for i := 0; i < 2; i++ {
		if err := w.Queue(ctx, memWrite("npc-1", "queued")); err != nil {
			t.Fatalf("Queue: %v", err)
		}
	}
	if len(store.FlushedBatches) != 0 {
		t.Fatalf("flushed %d batches below threshold, want 0", len(store.FlushedBatches))
	}
	if w.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", w.Pending())
	}

	if err := w.Queue(ctx, memWrite("npc-1", "trips the flush")); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(store.FlushedBatches) != 1 || len(store.FlushedBatches[0]) != 3 {
		t.Fatalf("flushed batches = %v, want one batch of 3", store.FlushedBatches)
	}
	if w.Pending() != 0 {
		t.Errorf("pending = %d after flush, want 0", w.Pending())
	}
}

func TestWriterExplicitFlush(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()
	w := NewWriter(store)

	// Empty flush is a no-op, not a store call.
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("empty Flush: %v", err)
	}
	if len(store.FlushedBatches) != 0 {
		t.Fatal("empty flush reached the store")
	}

	if err := w.Queue(ctx, memWrite("npc-1", "a")); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(store.FlushedBatches) != 1 {
		t.Fatalf("flushed batches = %d, want 1", len(store.FlushedBatches))
	}
}

func TestWriterRequeuesOnFailure(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()
	w := NewWriter(store, WithFlushThreshold(2))

	if err := w.Queue(ctx, memWrite("npc-1", "first")); err != nil {
		t.Fatalf("Queue: %v", err)
	}

	boom := errors.New("disk full")
	store.Err = boom
	err := w.Queue(ctx, memWrite("npc-1", "second"))
	if !errors.Is(err, boom) {
		t.Fatalf("Queue on failing store = %v, want disk full", err)
	}
	// Nothing lost: the failed batch sits back in the queue.
	if w.Pending() != 2 {
		t.Fatalf("pending = %d after failed flush, want 2", w.Pending())
	}

	store.Err = nil
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("Flush after recovery: %v", err)
	}
	if len(store.FlushedBatches) != 1 || len(store.FlushedBatches[0]) != 2 {
		t.Fatalf("recovered flush = %v, want one batch of 2", store.FlushedBatches)
	}
	if w.Pending() != 0 {
		t.Errorf("pending = %d, want 0", w.Pending())
	}
}
