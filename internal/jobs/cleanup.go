package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SimonWorku1/PrayerBuddy/internal/cascade"
	"github.com/SimonWorku1/PrayerBuddy/internal/identity"
	"github.com/SimonWorku1/PrayerBuddy/internal/store"
)

// Cleanup scans all user records, classifies placeholders and cascades
// deletion of everything referencing them: handle reservation, friend
// links, friend requests, the user record and the auth identity.
type Cleanup struct {
	log *slog.Logger
	st  store.Store
	dir identity.Directory
}

func NewCleanup(log *slog.Logger, st store.Store, dir identity.Directory) *Cleanup {
	return &Cleanup{log: log, st: st, dir: dir}
}

// CleanupResult records the outcome for one candidate. A candidate's
// failure never aborts the pass.
type CleanupResult struct {
	UID            string
	ReleasedHandle bool
	FriendLinks    int
	RequestsFrom   int
	RequestsTo     int
	UserDocDeleted bool
	AuthDeleted    bool
	Err            error
}

type CleanupSummary struct {
	Candidates      int
	Processed       int
	UsersDeleted    int
	AuthDeleted     int
	HandlesReleased int
	Failures        int
}

func (j *Cleanup) Run(ctx context.Context, opts Options) (CleanupSummary, []CleanupResult, error) {
	j.log.Info("placeholder_cleanup_started", "dry_run", opts.DryRun, "limit", opts.Limit)

	users, err := j.st.List(ctx, "users", 0)
	if err != nil {
		return CleanupSummary{}, nil, fmt.Errorf("scan users: %w", err)
	}

	var candidates []store.Document
	for _, u := range users {
		if IsPlaceholder(u) {
			candidates = append(candidates, u)
		}
	}
	target := capped(candidates, opts.Limit)

	j.log.Info("placeholder_candidates",
		"found", len(candidates),
		"operating_on", len(target),
	)

	lim := commitLimiter()
	summary := CleanupSummary{Candidates: len(candidates)}
	results := make([]CleanupResult, 0, len(target))

	for _, u := range target {
		if err := waitCommit(ctx, lim); err != nil {
			return summary, results, err
		}

		res := j.cleanupOne(ctx, u, opts.DryRun)
		results = append(results, res)
		summary.Processed++
		if res.UserDocDeleted {
			summary.UsersDeleted++
		}
		if res.AuthDeleted {
			summary.AuthDeleted++
		}
		if res.ReleasedHandle {
			summary.HandlesReleased++
		}
		if res.Err != nil {
			summary.Failures++
		}

		j.log.Info("placeholder_candidate_processed",
			"uid", res.UID,
			"dry_run", opts.DryRun,
			"released_handle", res.ReleasedHandle,
			"friend_links", res.FriendLinks,
			"requests_from", res.RequestsFrom,
			"requests_to", res.RequestsTo,
			"user_doc_deleted", res.UserDocDeleted,
			"auth_deleted", res.AuthDeleted,
			"error", res.Err,
		)
	}

	j.log.Info("placeholder_cleanup_done",
		"processed", summary.Processed,
		"users_deleted", summary.UsersDeleted,
		"auth_deleted", summary.AuthDeleted,
		"handles_released", summary.HandlesReleased,
		"failures", summary.Failures,
	)
	return summary, results, nil
}

func (j *Cleanup) cleanupOne(ctx context.Context, u store.Document, dryRun bool) CleanupResult {
	uid := u.ID()
	res := CleanupResult{UID: uid}

	released, err := j.releaseHandle(ctx, strings.TrimSpace(u.Text("handle")), dryRun)
	if err != nil {
		res.Err = err
		return res
	}
	res.ReleasedHandle = released

	links, err := j.st.QueryGroup(ctx, "friends", store.WhereDocID(uid))
	if err != nil {
		res.Err = fmt.Errorf("lookup friend links: %w", err)
		return res
	}
	res.FriendLinks = len(links)

	from, err := j.st.Query(ctx, "friend_requests", store.Where("from", store.OpEqual, uid))
	if err != nil {
		res.Err = fmt.Errorf("query requests from: %w", err)
		return res
	}
	to, err := j.st.Query(ctx, "friend_requests", store.Where("to", store.OpEqual, uid))
	if err != nil {
		res.Err = fmt.Errorf("query requests to: %w", err)
		return res
	}
	res.RequestsFrom = len(from)
	res.RequestsTo = len(to)

	cfg := cascade.DefaultConfig()
	cfg.ChunkSize = ChunkSize
	cfg.DryRun = dryRun
	w := cascade.NewWriter(j.st, cfg)
	for _, l := range links {
		w.Delete(l.Path)
	}
	for _, r := range from {
		w.Delete(r.Path)
	}
	for _, r := range to {
		w.Delete(r.Path)
	}
	// user record goes last so an interrupted run leaves the candidate
	// classifiable on the next pass
	w.Delete(u.Path)
	if err := w.Flush(ctx); err != nil {
		res.Err = err
		return res
	}
	res.UserDocDeleted = !dryRun

	if !dryRun {
		switch err := j.dir.DeleteIdentity(ctx, uid); {
		case err == nil:
			res.AuthDeleted = true
		case errors.Is(err, identity.ErrNotFound):
			// already gone, desired end state
		default:
			res.Err = fmt.Errorf("delete auth identity: %w", err)
		}
	}
	return res
}

func (j *Cleanup) releaseHandle(ctx context.Context, handle string, dryRun bool) (bool, error) {
	if handle == "" {
		return false, nil
	}
	path := "handles/" + handle
	if _, err := j.st.Get(ctx, path); errors.Is(err, store.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("read handle %s: %w", handle, err)
	}
	if !dryRun {
		b := j.st.Batch()
		b.Delete(path)
		if err := b.Commit(ctx); err != nil {
			return false, fmt.Errorf("release handle %s: %w", handle, err)
		}
	}
	return true, nil
}
