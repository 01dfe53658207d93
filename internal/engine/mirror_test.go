package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/SimonWorku1/PrayerBuddy/internal/identity"
	"github.com/SimonWorku1/PrayerBuddy/internal/store"
	"github.com/SimonWorku1/PrayerBuddy/internal/store/memstore"
)

func testEngine() (*Engine, *memstore.Store, *identity.MemDirectory) {
	st := memstore.New()
	dir := identity.NewMemDirectory()
	return New(slog.New(slog.DiscardHandler), st, dir), st, dir
}

func userEvent(uid string, before, after map[string]any) Event {
	kind := store.ChangeUpdated
	if before == nil {
		kind = store.ChangeCreated
	}
	if after == nil {
		kind = store.ChangeDeleted
	}
	return Event{ID: "ev", Change: store.Change{Kind: kind, Path: "users/" + uid, Before: before, After: after}}
}

func TestMirrorDeactivation_TogglesConverge(t *testing.T) {
	e, _, dir := testEngine()
	ctx := context.Background()

	out := e.MirrorDeactivation(ctx, userEvent("u1",
		map[string]any{"isDeactivated": false},
		map[string]any{"isDeactivated": true},
	))
	if out.Status != StatusOK {
		t.Fatalf("deactivate: %+v", out)
	}
	if v, _ := dir.Claims("u1")["isDeactivated"].(bool); !v {
		t.Errorf("expected claim true after deactivation")
	}

	out = e.MirrorDeactivation(ctx, userEvent("u1",
		map[string]any{"isDeactivated": true},
		map[string]any{"isDeactivated": false},
	))
	if out.Status != StatusOK {
		t.Fatalf("reactivate: %+v", out)
	}
	if v, _ := dir.Claims("u1")["isDeactivated"].(bool); v {
		t.Errorf("expected claim false after reactivation")
	}
}

func TestMirrorDeactivation_RedeliveryIsNoop(t *testing.T) {
	e, _, dir := testEngine()
	// a failing directory proves the no-op path never touches claims
	dir.FailSetClaims = errors.New("directory down")

	out := e.MirrorDeactivation(context.Background(), userEvent("u1",
		map[string]any{"isDeactivated": true, "name": "x"},
		map[string]any{"isDeactivated": true, "name": "y"},
	))
	if out.Status != StatusOK || out.Note != "noop" {
		t.Fatalf("expected noop outcome, got %+v", out)
	}
}

func TestMirrorDeactivation_AbsentDocReadsAsActive(t *testing.T) {
	e, _, dir := testEngine()
	ctx := context.Background()

	// create with the flag set: absent before reads as false, so it differs
	out := e.MirrorDeactivation(ctx, userEvent("u1", nil, map[string]any{"isDeactivated": true}))
	if out.Status != StatusOK {
		t.Fatalf("create: %+v", out)
	}
	if v, _ := dir.Claims("u1")["isDeactivated"].(bool); !v {
		t.Errorf("expected claim true")
	}

	// create without the flag: false == false, no-op
	out = e.MirrorDeactivation(ctx, userEvent("u2", nil, map[string]any{"name": "n"}))
	if out.Status != StatusOK || out.Note != "noop" {
		t.Fatalf("expected noop, got %+v", out)
	}
}

func TestMirrorDeactivation_ClaimFailureIsRetryable(t *testing.T) {
	e, _, dir := testEngine()
	dir.FailSetClaims = errors.New("directory down")

	out := e.MirrorDeactivation(context.Background(), userEvent("u1",
		map[string]any{"isDeactivated": false},
		map[string]any{"isDeactivated": true},
	))
	if out.Status != StatusRetryable {
		t.Fatalf("expected retryable outcome, got %+v", out)
	}
}
