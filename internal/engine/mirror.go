package engine

import (
	"context"
	"fmt"
)

// MirrorDeactivation propagates the isDeactivated flag of a user record
// into the auth claims. It is a pure function of the before/after
// snapshots: an absent document reads as not deactivated, and an
// unchanged flag is a no-op, which makes redelivery harmless.
func (e *Engine) MirrorDeactivation(ctx context.Context, ev Event) Outcome {
	uid := UID(ev.Path)
	if uid == "" {
		return Permanent(fmt.Errorf("mirror: bad path %q", ev.Path), "")
	}

	was := boolField(ev.Before, "isDeactivated")
	now := boolField(ev.After, "isDeactivated")
	if was == now {
		return OK("noop")
	}

	if err := e.dir.SetClaims(ctx, uid, map[string]any{"isDeactivated": now}); err != nil {
		return Retryable(fmt.Errorf("set claims for %s: %w", uid, err))
	}

	e.log.Info("claims_updated", "uid", uid, "is_deactivated", now)
	return OK("")
}

func boolField(data map[string]any, field string) bool {
	if data == nil {
		return false
	}
	v, _ := data[field].(bool)
	return v
}
