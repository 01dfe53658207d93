package engine

import (
	"context"
	"fmt"

	"github.com/SimonWorku1/PrayerBuddy/internal/store"
)

// BackfillPosts is a one-off migration trigger: it fills missing
// isHidden/ownerActive fields on posts, then consumes its trigger
// document. Same chunked batching discipline as the other bulk passes.
func (e *Engine) BackfillPosts(ctx context.Context, ev Event) Outcome {
	return e.backfillPosts(ctx, ev, false)
}

// BackfillPostsDryRun runs the same scan and chunking but commits
// nothing; the log carries the would-be count.
func (e *Engine) BackfillPostsDryRun(ctx context.Context, ev Event) Outcome {
	return e.backfillPosts(ctx, ev, true)
}

func (e *Engine) backfillPosts(ctx context.Context, ev Event, dryRun bool) Outcome {
	posts, err := e.st.Query(ctx, "posts", store.WhereMissing("isHidden"))
	if err != nil {
		return Retryable(fmt.Errorf("query posts: %w", err))
	}

	w := e.writer(dryRun)
	for _, p := range posts {
		w.Set(p.Path, map[string]any{"isHidden": false, "ownerActive": true}, true)
	}
	w.Delete(ev.Path)

	if err := w.Flush(ctx); err != nil {
		return Retryable(fmt.Errorf("backfill posts: %w", err))
	}

	e.log.Info("posts_backfilled", "count", len(posts), "dry_run", dryRun)
	return OK("")
}
