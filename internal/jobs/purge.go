package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SimonWorku1/PrayerBuddy/internal/cascade"
	"github.com/SimonWorku1/PrayerBuddy/internal/identity"
	"github.com/SimonWorku1/PrayerBuddy/internal/store"

	"golang.org/x/time/rate"
)

// Purge unconditionally wipes all application data. The store has no
// whole-collection delete, so each collection drains through repeated
// page-delete-commit cycles until a scan comes back empty.
type Purge struct {
	log *slog.Logger
	st  store.Store
	dir identity.Directory
}

func NewPurge(log *slog.Logger, st store.Store, dir identity.Directory) *Purge {
	return &Purge{log: log, st: st, dir: dir}
}

type PurgeSummary struct {
	Chats          int
	Messages       int
	Posts          int
	FriendRequests int
	Users          int
	FriendLinks    int
	Handles        int
}

func (j *Purge) Run(ctx context.Context, opts Options) (PurgeSummary, error) {
	j.log.Info("purge_all_started", "dry_run", opts.DryRun)

	lim := commitLimiter()
	var sum PurgeSummary
	var err error

	if sum.Chats, sum.Messages, err = j.purgeChats(ctx, opts.DryRun, lim); err != nil {
		return sum, fmt.Errorf("purge chats: %w", err)
	}
	if sum.Posts, err = j.drainCollection(ctx, "posts", opts.DryRun, lim); err != nil {
		return sum, fmt.Errorf("purge posts: %w", err)
	}
	if sum.FriendRequests, err = j.drainCollection(ctx, "friend_requests", opts.DryRun, lim); err != nil {
		return sum, fmt.Errorf("purge friend requests: %w", err)
	}
	if sum.Users, sum.FriendLinks, err = j.purgeUsers(ctx, opts.DryRun, lim); err != nil {
		return sum, fmt.Errorf("purge users: %w", err)
	}
	if sum.Handles, err = j.drainCollection(ctx, "handles", opts.DryRun, lim); err != nil {
		return sum, fmt.Errorf("purge handles: %w", err)
	}

	j.log.Info("purge_all_done",
		"dry_run", opts.DryRun,
		"chats", sum.Chats,
		"messages", sum.Messages,
		"posts", sum.Posts,
		"friend_requests", sum.FriendRequests,
		"users", sum.Users,
		"friend_links", sum.FriendLinks,
		"handles", sum.Handles,
	)
	return sum, nil
}

func (j *Purge) purgeChats(ctx context.Context, dryRun bool, lim *rate.Limiter) (chats, messages int, err error) {
	all, err := j.st.List(ctx, "chats", 0)
	if err != nil {
		return 0, 0, err
	}
	for _, chat := range all {
		msgs, err := j.st.List(ctx, chat.Path+"/messages", 0)
		if err != nil {
			return chats, messages, err
		}
		if err := waitCommit(ctx, lim); err != nil {
			return chats, messages, err
		}

		w := j.writer(dryRun)
		for _, m := range msgs {
			w.Delete(m.Path)
		}
		w.Delete(chat.Path)
		if err := w.Flush(ctx); err != nil {
			return chats, messages, err
		}
		chats++
		messages += len(msgs)
	}
	return chats, messages, nil
}

func (j *Purge) purgeUsers(ctx context.Context, dryRun bool, lim *rate.Limiter) (users, links int, err error) {
	all, err := j.st.List(ctx, "users", 0)
	if err != nil {
		return 0, 0, err
	}
	for _, u := range all {
		friends, err := j.st.List(ctx, u.Path+"/friends", 0)
		if err != nil {
			return users, links, err
		}
		if err := waitCommit(ctx, lim); err != nil {
			return users, links, err
		}

		w := j.writer(dryRun)
		for _, f := range friends {
			w.Delete(f.Path)
		}
		w.Delete(u.Path)
		if err := w.Flush(ctx); err != nil {
			return users, links, err
		}

		if !dryRun {
			// best effort: an identity already absent is not an error
			if err := j.dir.DeleteIdentity(ctx, u.ID()); err != nil && !errors.Is(err, identity.ErrNotFound) {
				j.log.Warn("auth_delete_failed", "uid", u.ID(), "error", err)
			}
		}
		users++
		links += len(friends)
	}
	return users, links, nil
}

// drainCollection deletes a collection page by page until a scan returns
// empty. On dry-run a single full scan yields the count; looping would
// never terminate without deletes.
func (j *Purge) drainCollection(ctx context.Context, collection string, dryRun bool, lim *rate.Limiter) (int, error) {
	if dryRun {
		docs, err := j.st.List(ctx, collection, 0)
		if err != nil {
			return 0, err
		}
		return len(docs), nil
	}

	deleted := 0
	for {
		page, err := j.st.List(ctx, collection, ChunkSize)
		if err != nil {
			return deleted, err
		}
		if len(page) == 0 {
			return deleted, nil
		}
		if err := waitCommit(ctx, lim); err != nil {
			return deleted, err
		}

		b := j.st.Batch()
		for _, d := range page {
			b.Delete(d.Path)
		}
		if err := b.Commit(ctx); err != nil {
			return deleted, err
		}
		deleted += len(page)
		j.log.Debug("collection_page_deleted", "collection", collection, "total", deleted)
	}
}

func (j *Purge) writer(dryRun bool) *cascade.Writer {
	cfg := cascade.DefaultConfig()
	cfg.ChunkSize = ChunkSize
	cfg.DryRun = dryRun
	return cascade.NewWriter(j.st, cfg)
}
