package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/SimonWorku1/PrayerBuddy/internal/store"
)

const deadLetterList = "dlq:triggers"

// Deduper is the slice of the redis client the dispatcher needs:
// best-effort event dedup and the dead-letter list.
type Deduper interface {
	MarkSeen(ctx context.Context, key string, ttl time.Duration) bool
	Forget(ctx context.Context, key string)
	DeadLetter(ctx context.Context, list string, item any) error
}

type worker struct {
	id       int
	stopChan chan bool
}

// Dispatcher fans trigger events out to a worker pool. Delivery is
// at-least-once: deduplication is best-effort only, and the handlers
// stay idempotent regardless.
type Dispatcher struct {
	log     *slog.Logger
	engine  *Engine
	dedup   Deduper // nil disables dedup and the dead-letter list
	queue   chan Event
	workers []*worker
	wg      sync.WaitGroup
	mu      sync.Mutex
}

func NewDispatcher(log *slog.Logger, eng *Engine, dedup Deduper, queueSize int) *Dispatcher {
	if queueSize < 1 {
		queueSize = 10000
	}
	return &Dispatcher{
		log:    log,
		engine: eng,
		dedup:  dedup,
		queue:  make(chan Event, queueSize),
	}
}

// Enqueue accepts a raw store change and queues it for processing.
func (d *Dispatcher) Enqueue(ch store.Change) {
	d.queue <- Event{ID: xid.New().String(), Change: ch}
}

func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

func (d *Dispatcher) StartWorkers(count int) {
	if count < 1 {
		count = 5
	}
	if count > 64 {
		count = 64
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := 0; i < count; i++ {
		w := &worker{id: i + 1, stopChan: make(chan bool, 1)}
		d.workers = append(d.workers, w)

		d.wg.Add(1)
		go d.run(w)
	}

	d.log.Info("trigger_workers_started", "count", count)
}

func (d *Dispatcher) run(w *worker) {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.queue:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			d.Process(ctx, ev)
			cancel()
		case <-w.stopChan:
			d.log.Info("trigger_worker_stopped", "worker_id", w.id)
			return
		}
	}
}

func (d *Dispatcher) StopWorkers() {
	d.mu.Lock()
	for _, w := range d.workers {
		select {
		case w.stopChan <- true:
		default:
		}
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("all_trigger_workers_stopped")
}

// Process routes a single event and acts on the handler outcome.
func (d *Dispatcher) Process(ctx context.Context, ev Event) {
	route := RouteFor(ev.Path)
	if route == RouteNone {
		d.log.Debug("unrouted_change", "path", ev.Path, "kind", ev.Kind)
		return
	}

	key := dedupKey(ev)
	if d.dedup != nil {
		if d.dedup.MarkSeen(ctx, key, 60*time.Second) {
			d.log.Debug("duplicate_event_skipped", "path", ev.Path, "event_id", ev.ID)
			return
		}
	}

	var out Outcome
	switch route {
	case RouteUserWrite:
		out = d.engine.MirrorDeactivation(ctx, ev)
	case RouteReactivateRequest:
		if ev.Kind != store.ChangeCreated {
			return
		}
		out = d.engine.Reactivate(ctx, ev)
	case RouteBackfillPosts:
		if ev.Kind != store.ChangeCreated {
			return
		}
		out = d.engine.BackfillPosts(ctx, ev)
	}

	switch out.Status {
	case StatusOK:
		if out.Note != "" {
			d.log.Debug("trigger_done", "path", ev.Path, "note", out.Note)
		}
	case StatusPermanent:
		d.log.Error("trigger_failed_permanently",
			"path", ev.Path,
			"event_id", ev.ID,
			"error", out.Err,
		)
	case StatusRetryable:
		d.log.Warn("trigger_failed",
			"path", ev.Path,
			"event_id", ev.ID,
			"error", out.Err,
		)
		if d.dedup != nil {
			// the event must stay deliverable: a suppressed redelivery
			// would strand the pending work item until the TTL lapses
			d.dedup.Forget(ctx, key)
		}
		d.deadLetter(ctx, ev, out)
	}
}

func (d *Dispatcher) deadLetter(ctx context.Context, ev Event, out Outcome) {
	if d.dedup == nil {
		return
	}
	item := map[string]any{
		"event_id":  ev.ID,
		"path":      ev.Path,
		"kind":      ev.Kind,
		"error":     out.Err.Error(),
		"timestamp": time.Now(),
	}
	if err := d.dedup.DeadLetter(ctx, deadLetterList, item); err != nil {
		d.log.Warn("dead_letter_write_failed", "path", ev.Path, "error", err)
	}
}

// dedupKey identifies a delivery by its full diff, so distinct writes to
// the same document never collapse into one key.
func dedupKey(ev Event) string {
	h := fnv.New64a()
	enc, _ := json.Marshal(map[string]any{"before": ev.Before, "after": ev.After})
	h.Write(enc)
	return fmt.Sprintf("trigger:seen:%s:%s:%x", ev.Kind, ev.Path, h.Sum64())
}
