package engine

import (
	"strings"

	"github.com/SimonWorku1/PrayerBuddy/internal/store"
)

// Event is one trigger delivery: a document change plus a delivery id.
// The same change may arrive more than once and in any order relative to
// other documents; handlers are pure functions of (path, before, after).
type Event struct {
	ID string
	store.Change
}

// Route names the handler responsible for a document path.
type Route int

const (
	RouteNone Route = iota
	RouteUserWrite
	RouteReactivateRequest
	RouteBackfillPosts
)

// RouteFor matches a document path against the trigger routes.
func RouteFor(path string) Route {
	seg := strings.Split(path, "/")
	switch {
	case len(seg) == 2 && seg[0] == "users":
		return RouteUserWrite
	case len(seg) == 4 && seg[0] == "users" && seg[2] == "reactivate_requests":
		return RouteReactivateRequest
	case len(seg) == 4 && seg[0] == "admin" && seg[1] == "backfill_posts" && seg[2] == "trigger":
		return RouteBackfillPosts
	}
	return RouteNone
}

// UID extracts the user id from a users/{uid}... path.
func UID(path string) string {
	seg := strings.Split(path, "/")
	if len(seg) >= 2 && seg[0] == "users" {
		return seg[1]
	}
	return ""
}
