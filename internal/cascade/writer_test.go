package cascade

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/SimonWorku1/PrayerBuddy/internal/store"
	"github.com/SimonWorku1/PrayerBuddy/internal/store/memstore"
)

func TestWriter_FlushChunksUnderCeiling(t *testing.T) {
	st := memstore.New()

	var commits []int
	cfg := Config{ChunkSize: 10, OnProgress: func(flushed, pending int) {
		commits = append(commits, flushed)
	}}

	w := NewWriter(st, cfg)
	for i := 0; i < 25; i++ {
		w.Set(fmt.Sprintf("posts/p%02d", i), map[string]any{"n": i}, false)
	}

	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if w.Flushed() != 25 {
		t.Errorf("expected 25 flushed ops, got %d", w.Flushed())
	}
	if w.Pending() != 0 {
		t.Errorf("expected 0 pending ops, got %d", w.Pending())
	}
	// three chunks: 10, 10, 5
	if len(commits) != 3 || commits[0] != 10 || commits[1] != 20 || commits[2] != 25 {
		t.Errorf("unexpected progress reports: %v", commits)
	}
	if st.Len() != 25 {
		t.Errorf("expected 25 documents in store, got %d", st.Len())
	}
}

func TestWriter_DryRunWritesNothing(t *testing.T) {
	st := memstore.New()

	w := NewWriter(st, Config{ChunkSize: 5, DryRun: true})
	for i := 0; i < 12; i++ {
		w.Set(fmt.Sprintf("users/u%d", i), map[string]any{"x": true}, true)
	}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if w.Flushed() != 12 {
		t.Errorf("dry-run should still count ops, got %d", w.Flushed())
	}
	if st.Len() != 0 {
		t.Errorf("dry-run must not write, store has %d docs", st.Len())
	}
}

func TestWriter_PoisonedAfterFailedFlush(t *testing.T) {
	st := memstore.New()

	w := NewWriter(st, Config{ChunkSize: 5})
	// update of a missing document makes the chunk commit fail
	w.Update("users/missing", map[string]any{"x": 1})

	err := w.Flush(context.Background())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	w.Set("users/u1", map[string]any{"x": 1}, false)
	if w.Pending() != 1 {
		// the failed op is still pending; new ops must be rejected
		t.Errorf("expected poisoned writer to reject new ops, pending=%d", w.Pending())
	}
	if err2 := w.Flush(context.Background()); !errors.Is(err2, store.ErrNotFound) {
		t.Errorf("expected repeated flush to return recorded error, got %v", err2)
	}
}

func TestWriter_OrderPreservedAcrossChunks(t *testing.T) {
	st := memstore.New()

	b := st.Batch()
	b.Set("queue/item", map[string]any{"pending": true}, false)
	if err := b.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}

	w := NewWriter(st, Config{ChunkSize: 2})
	w.Set("a/1", map[string]any{}, false)
	w.Set("a/2", map[string]any{}, false)
	w.Set("a/3", map[string]any{}, false)
	// completion marker appended last must be in the final chunk
	w.Delete("queue/item")

	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := st.Get(context.Background(), "queue/item"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("marker should be deleted after flush, got %v", err)
	}
}

func TestWriter_ChunkSizeCappedAtCeiling(t *testing.T) {
	w := NewWriter(memstore.New(), Config{ChunkSize: store.MaxBatchOps + 100})
	if w.cfg.ChunkSize != DefaultChunkSize {
		t.Errorf("oversized chunk config should fall back to default, got %d", w.cfg.ChunkSize)
	}
}
