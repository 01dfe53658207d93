package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SimonWorku1/PrayerBuddy/internal/store"
)

// Reactivate handles creation of a reactivation-request document. It
// restores visibility across everything that denormalizes the owner's
// active state, then consumes the request.
//
// All writes flow through the bounded cascading writer, so arbitrarily
// large fan-out commits in ceiling-sized atomic chunks. The request
// delete is appended last: the request document is the completion
// marker, and it only disappears once every dependent chunk has
// committed. A failure mid-cascade leaves the request in place, and the
// redelivered event re-enters safely because every update is idempotent.
func (e *Engine) Reactivate(ctx context.Context, ev Event) Outcome {
	uid := UID(ev.Path)
	if uid == "" {
		return Permanent(fmt.Errorf("reactivate: bad path %q", ev.Path), "")
	}
	userPath := "users/" + uid

	user, err := e.st.Get(ctx, userPath)
	if errors.Is(err, store.ErrNotFound) {
		// orphan request: the user record is gone, nothing to restore;
		// consume the request so it stops redelivering
		b := e.st.Batch()
		b.Delete(ev.Path)
		if cerr := b.Commit(ctx); cerr != nil {
			return Retryable(fmt.Errorf("drop orphan request %s: %w", ev.Path, cerr))
		}
		return Permanent(fmt.Errorf("reactivate %s: user record missing", uid), "orphan")
	}
	if err != nil {
		return Retryable(fmt.Errorf("read user %s: %w", uid, err))
	}

	w := e.writer(false)
	w.Update(userPath, map[string]any{
		"isDeactivated":      false,
		"lastReactivationAt": store.ServerTimestamp,
	})

	posts, err := e.st.Query(ctx, "posts", store.Where("ownerId", store.OpEqual, uid))
	if err != nil {
		return Retryable(fmt.Errorf("query posts for %s: %w", uid, err))
	}
	for _, p := range posts {
		w.Update(p.Path, map[string]any{"isHidden": false, "ownerActive": true})
	}

	// NOTE: a chat becomes visible again as soon as any one member
	// reactivates, even if other members are still deactivated.
	chats, err := e.st.Query(ctx, "chats", store.Where("memberIds", store.OpArrayContains, uid))
	if err != nil {
		return Retryable(fmt.Errorf("query chats for %s: %w", uid, err))
	}
	for _, c := range chats {
		w.Update(c.Path, map[string]any{"isHidden": false})
	}

	reqs, err := e.st.Query(ctx, "friend_requests", store.Where("from", store.OpEqual, uid))
	if err != nil {
		return Retryable(fmt.Errorf("query friend requests for %s: %w", uid, err))
	}
	for _, r := range reqs {
		w.Update(r.Path, map[string]any{"isHidden": false})
	}

	if handle := strings.TrimSpace(user.Text("handle")); handle != "" {
		w.Set("handles/"+handle, map[string]any{"isActive": true, "ownerId": uid}, true)
	}

	// completion marker, must stay the final operation
	w.Delete(ev.Path)

	if err := w.Flush(ctx); err != nil {
		return Retryable(fmt.Errorf("reactivate %s: %w", uid, err))
	}

	// The mirror trigger fires on the user update above and converges
	// claims too; this direct update just removes the propagation lag.
	if err := e.dir.SetClaims(ctx, uid, map[string]any{"isDeactivated": false}); err != nil {
		return Retryable(fmt.Errorf("set claims for %s: %w", uid, err))
	}

	e.log.Info("account_reactivated",
		"uid", uid,
		"posts", len(posts),
		"chats", len(chats),
		"friend_requests", len(reqs),
	)
	return OK("")
}
