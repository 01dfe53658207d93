package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SimonWorku1/PrayerBuddy/internal/cascade"
	"github.com/SimonWorku1/PrayerBuddy/internal/store"
)

// ResetHandleLimits zeroes every user's handle-change counter and stamps
// the reset time, committing in merge-write chunks sized under the batch
// ceiling. This chunked pass is the canonical shape for bulk writes whose
// fan-out can exceed a single batch.
type ResetHandleLimits struct {
	log *slog.Logger
	st  store.Store
}

func NewResetHandleLimits(log *slog.Logger, st store.Store) *ResetHandleLimits {
	return &ResetHandleLimits{log: log, st: st}
}

type ResetSummary struct {
	Processed int
}

func (j *ResetHandleLimits) Run(ctx context.Context, opts Options) (ResetSummary, error) {
	users, err := j.st.List(ctx, "users", opts.Limit)
	if err != nil {
		return ResetSummary{}, fmt.Errorf("scan users: %w", err)
	}

	j.log.Info("handle_limit_reset_started",
		"users", len(users),
		"dry_run", opts.DryRun,
		"chunk_size", ChunkSize,
	)

	now := time.Now()
	total := len(users)

	cfg := cascade.DefaultConfig()
	cfg.ChunkSize = ChunkSize
	cfg.DryRun = opts.DryRun
	cfg.OnProgress = func(flushed, pending int) {
		j.log.Info("handle_limit_reset_progress", "processed", flushed, "total", total)
	}

	w := cascade.NewWriter(j.st, cfg)
	for _, u := range users {
		w.Set(u.Path, map[string]any{
			"handleChangeCount":   0,
			"handleChangeResetAt": now,
		}, true)
	}
	if err := w.Flush(ctx); err != nil {
		return ResetSummary{Processed: w.Flushed()}, err
	}

	j.log.Info("handle_limit_reset_done", "processed", total)
	return ResetSummary{Processed: total}, nil
}
