// Package jobs implements the operator-initiated batch passes: placeholder
// cleanup, purge-all and handle-limit reset. Every job is a bounded,
// restartable, idempotent pass: per-unit errors are recorded and the pass
// continues, and all writes respect the store's batch ceiling.
package jobs

import (
	"context"
	"strings"

	"golang.org/x/time/rate"

	"github.com/SimonWorku1/PrayerBuddy/internal/store"
)

// Options are shared by all jobs. DryRun performs every read and
// classification but suppresses all writes and deletes; Limit caps the
// candidate set where the job supports it (<=0 means no cap).
type Options struct {
	DryRun bool
	Limit  int
}

// ChunkSize is the per-commit page size, kept under the store ceiling.
const ChunkSize = 400

// commitLimiter paces commit cycles so bulk jobs do not monopolize the
// store's write throughput.
func commitLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(10), 1)
}

// IsPlaceholder classifies a user record as an abandoned placeholder:
// either explicitly flagged, or a minimal profile whose name is empty or
// the literal "user" with no handle, email or phone.
func IsPlaceholder(d store.Document) bool {
	if d.Bool("isPlaceholder") {
		return true
	}
	name := strings.TrimSpace(d.Text("name"))
	handle := strings.TrimSpace(d.Text("handle"))
	email := strings.TrimSpace(d.Text("email"))
	phone := strings.TrimSpace(d.Text("phone"))
	return (name == "" || strings.EqualFold(name, "user")) &&
		handle == "" && email == "" && phone == ""
}

func capped(docs []store.Document, limit int) []store.Document {
	if limit > 0 && len(docs) > limit {
		return docs[:limit]
	}
	return docs
}

func waitCommit(ctx context.Context, lim *rate.Limiter) error {
	return lim.Wait(ctx)
}
