// Package cascade provides the bounded cascading writer: an accumulator
// of document writes flushed in atomic chunks sized under the store's
// operation ceiling. Fan-out cascades and bulk jobs share it so no code
// path ever depends on a whole cascade fitting in a single batch.
package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SimonWorku1/PrayerBuddy/internal/store"
)

// DefaultChunkSize leaves headroom under store.MaxBatchOps.
const DefaultChunkSize = 400

type Config struct {
	ChunkSize int
	// DryRun counts and chunks operations but never commits.
	DryRun     bool
	OnProgress func(flushed, pending int)
}

func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize}
}

type opKind int

const (
	opSet opKind = iota
	opUpdate
	opDelete
)

type op struct {
	kind  opKind
	path  string
	data  map[string]any
	merge bool
}

// Writer accumulates operations and commits them in order, one bounded
// atomic chunk at a time. Chunks commit in submission order, so a caller
// that appends its completion marker last gets re-entry safety for free:
// the marker only commits after everything before it has.
type Writer struct {
	st      store.Store
	cfg     Config
	pending []op
	flushed int
	failed  error
}

func NewWriter(st store.Store, cfg Config) *Writer {
	if cfg.ChunkSize < 1 || cfg.ChunkSize > store.MaxBatchOps {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Writer{st: st, cfg: cfg}
}

func (w *Writer) Set(path string, data map[string]any, merge bool) {
	w.add(op{kind: opSet, path: path, data: data, merge: merge})
}

func (w *Writer) Update(path string, data map[string]any) {
	w.add(op{kind: opUpdate, path: path, data: data})
}

func (w *Writer) Delete(path string) {
	w.add(op{kind: opDelete, path: path})
}

func (w *Writer) add(o op) {
	if w.failed != nil {
		return // writer is poisoned after a failed flush
	}
	w.pending = append(w.pending, o)
}

// Pending reports operations not yet committed.
func (w *Writer) Pending() int {
	return len(w.pending)
}

// Flushed reports operations committed so far.
func (w *Writer) Flushed() int {
	return w.flushed
}

// Flush commits all pending operations in chunk-sized atomic batches.
// On a chunk failure the writer keeps the committed prefix, records the
// error, and rejects further use; the caller's work item stays pending
// so a redelivery can re-enter.
func (w *Writer) Flush(ctx context.Context) error {
	if w.failed != nil {
		return w.failed
	}

	for len(w.pending) > 0 {
		n := len(w.pending)
		if n > w.cfg.ChunkSize {
			n = w.cfg.ChunkSize
		}
		chunk := w.pending[:n]

		if !w.cfg.DryRun {
			b := w.st.Batch()
			for _, o := range chunk {
				switch o.kind {
				case opSet:
					b.Set(o.path, o.data, o.merge)
				case opUpdate:
					b.Update(o.path, o.data)
				case opDelete:
					b.Delete(o.path)
				}
			}
			if err := b.Commit(ctx); err != nil {
				w.failed = fmt.Errorf("flush at op %d: %w", w.flushed, err)
				return w.failed
			}
		}

		w.pending = w.pending[n:]
		w.flushed += n
		if w.cfg.OnProgress != nil {
			w.cfg.OnProgress(w.flushed, len(w.pending))
		}
	}
	return nil
}

// LogProgress returns an OnProgress callback that reports through the
// given logger.
func LogProgress(log *slog.Logger, what string) func(flushed, pending int) {
	return func(flushed, pending int) {
		log.Debug("cascade_progress",
			"what", what,
			"flushed", flushed,
			"pending", pending,
		)
	}
}
