package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/SimonWorku1/PrayerBuddy/internal/store"
)

func TestBackfillPosts_FillsOnlyMissingFields(t *testing.T) {
	ctx := context.Background()
	e, st, _ := testEngine()

	seed(t, st, "posts/old1", map[string]any{"ownerId": "u1"})
	seed(t, st, "posts/old2", map[string]any{"ownerId": "u2"})
	seed(t, st, "posts/new1", map[string]any{"ownerId": "u3", "isHidden": true, "ownerActive": false})
	seed(t, st, "admin/backfill_posts/trigger/t1", map[string]any{})

	out := e.BackfillPosts(ctx, Event{ID: "ev", Change: store.Change{
		Kind: store.ChangeCreated,
		Path: "admin/backfill_posts/trigger/t1",
	}})
	if out.Status != StatusOK {
		t.Fatalf("backfill failed: %+v", out)
	}

	for _, id := range []string{"old1", "old2"} {
		p, err := st.Get(ctx, "posts/"+id)
		if err != nil {
			t.Fatal(err)
		}
		if p.Bool("isHidden") || !p.Bool("ownerActive") {
			t.Errorf("post %s not backfilled: %+v", id, p.Data)
		}
	}

	// a post that already carries the fields is left alone
	p, _ := st.Get(ctx, "posts/new1")
	if !p.Bool("isHidden") || p.Bool("ownerActive") {
		t.Errorf("existing fields must not be overwritten: %+v", p.Data)
	}

	if _, err := st.Get(ctx, "admin/backfill_posts/trigger/t1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("trigger document should be consumed, got %v", err)
	}
}

// Dry-run scans and counts but commits nothing, so the migration can be
// sized before it runs.
func TestBackfillPosts_DryRun(t *testing.T) {
	ctx := context.Background()
	e, st, _ := testEngine()

	seed(t, st, "posts/old1", map[string]any{"ownerId": "u1"})
	seed(t, st, "posts/old2", map[string]any{"ownerId": "u2"})
	docsBefore := st.Len()

	out := e.BackfillPostsDryRun(ctx, Event{ID: "ev", Change: store.Change{
		Kind: store.ChangeCreated,
		Path: "admin/backfill_posts/trigger/t1",
	}})
	if out.Status != StatusOK {
		t.Fatalf("dry-run failed: %+v", out)
	}

	if st.Len() != docsBefore {
		t.Errorf("dry-run changed the store: %d -> %d docs", docsBefore, st.Len())
	}
	for _, id := range []string{"old1", "old2"} {
		p, err := st.Get(ctx, "posts/"+id)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := p.Data["isHidden"]; ok {
			t.Errorf("post %s was written during dry-run: %+v", id, p.Data)
		}
	}
}
