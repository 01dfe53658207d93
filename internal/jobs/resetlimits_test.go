package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/SimonWorku1/PrayerBuddy/internal/store/memstore"
)

func TestResetHandleLimits_ZeroesCountersAcrossChunks(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	start := time.Now()

	// more users than one commit chunk holds
	b := st.Batch()
	for i := 0; i < 450; i++ {
		b.Set(fmt.Sprintf("users/u%03d", i), map[string]any{
			"name":              fmt.Sprintf("User %d", i),
			"handleChangeCount": 3,
		}, false)
	}
	if err := b.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	job := NewResetHandleLimits(testLogger(), st)
	sum, err := job.Run(ctx, Options{})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if sum.Processed != 450 {
		t.Errorf("processed = %d, want 450", sum.Processed)
	}

	for _, id := range []string{"u000", "u250", "u449"} {
		u, err := st.Get(ctx, "users/"+id)
		if err != nil {
			t.Fatal(err)
		}
		if n, _ := u.Data["handleChangeCount"].(int); n != 0 {
			t.Errorf("%s: handleChangeCount = %v", id, u.Data["handleChangeCount"])
		}
		at, ok := u.Data["handleChangeResetAt"].(time.Time)
		if !ok || at.Before(start) {
			t.Errorf("%s: handleChangeResetAt = %v", id, u.Data["handleChangeResetAt"])
		}
		// merge write keeps the rest of the profile
		if u.Text("name") == "" {
			t.Errorf("%s: profile fields lost on merge", id)
		}
	}
}

func TestResetHandleLimits_DryRun(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seed(t, st, "users/u1", map[string]any{"handleChangeCount": 2})

	job := NewResetHandleLimits(testLogger(), st)
	sum, err := job.Run(ctx, Options{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Processed != 1 {
		t.Errorf("processed = %d, want 1", sum.Processed)
	}

	u, _ := st.Get(ctx, "users/u1")
	if n, _ := u.Data["handleChangeCount"].(int); n != 2 {
		t.Errorf("dry-run changed the counter: %v", u.Data["handleChangeCount"])
	}
	if _, ok := u.Data["handleChangeResetAt"]; ok {
		t.Errorf("dry-run stamped a reset time")
	}
}

func TestResetHandleLimits_Limit(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	for i := 0; i < 5; i++ {
		seed(t, st, fmt.Sprintf("users/u%d", i), map[string]any{"handleChangeCount": 1})
	}

	job := NewResetHandleLimits(testLogger(), st)
	sum, err := job.Run(ctx, Options{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Processed != 2 {
		t.Errorf("processed = %d, want 2", sum.Processed)
	}

	reset := 0
	for i := 0; i < 5; i++ {
		u, _ := st.Get(ctx, fmt.Sprintf("users/u%d", i))
		if n, _ := u.Data["handleChangeCount"].(int); n == 0 {
			reset++
		}
	}
	if reset != 2 {
		t.Errorf("%d users reset, want 2", reset)
	}
}
