// Package engine implements the trigger handlers that keep a user's
// lifecycle state consistent across the denormalized collections: the
// deactivation mirror, the reactivation cascade and the posts backfill.
package engine

import (
	"log/slog"

	"github.com/SimonWorku1/PrayerBuddy/internal/cascade"
	"github.com/SimonWorku1/PrayerBuddy/internal/identity"
	"github.com/SimonWorku1/PrayerBuddy/internal/store"
)

type Engine struct {
	log *slog.Logger
	st  store.Store
	dir identity.Directory
}

func New(log *slog.Logger, st store.Store, dir identity.Directory) *Engine {
	return &Engine{log: log, st: st, dir: dir}
}

func (e *Engine) writer(dryRun bool) *cascade.Writer {
	cfg := cascade.DefaultConfig()
	cfg.DryRun = dryRun
	cfg.OnProgress = cascade.LogProgress(e.log, "trigger")
	return cascade.NewWriter(e.st, cfg)
}
