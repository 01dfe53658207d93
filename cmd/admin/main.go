// Command admin runs the operator batch jobs: placeholder cleanup,
// purge-all, handle-limit reset and the posts backfill. Each job is a
// one-shot pass; the process exits non-zero only on unhandled top-level
// failure.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/SimonWorku1/PrayerBuddy/internal/config"
	"github.com/SimonWorku1/PrayerBuddy/internal/engine"
	"github.com/SimonWorku1/PrayerBuddy/internal/identity"
	"github.com/SimonWorku1/PrayerBuddy/internal/identity/firebaseauth"
	"github.com/SimonWorku1/PrayerBuddy/internal/jobs"
	"github.com/SimonWorku1/PrayerBuddy/internal/logging"
	"github.com/SimonWorku1/PrayerBuddy/internal/store"
	fsstore "github.com/SimonWorku1/PrayerBuddy/internal/store/firestore"
	"github.com/SimonWorku1/PrayerBuddy/internal/store/memstore"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type env struct {
	log *slog.Logger
	st  store.Store
	dir identity.Directory

	close func()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "PrayerBuddy operator batch jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newCleanupCommand())
	cmd.AddCommand(newPurgeCommand())
	cmd.AddCommand(newResetCommand())
	cmd.AddCommand(newBackfillCommand())

	return cmd
}

func newCleanupCommand() *cobra.Command {
	var dryRun bool
	var limit int

	cmd := &cobra.Command{
		Use:   "cleanup-placeholders",
		Short: "Delete placeholder accounts with full referential cleanup",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			job := jobs.NewCleanup(e.log, e.st, e.dir)
			_, _, err = job.Run(cmd.Context(), jobs.Options{DryRun: dryRun, Limit: limit})
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify and count but issue no deletes")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the candidate set (0 = no cap)")
	return cmd
}

func newPurgeCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "purge-all",
		Short: "Unconditionally delete all application data",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			job := jobs.NewPurge(e.log, e.st, e.dir)
			_, err = job.Run(cmd.Context(), jobs.Options{DryRun: dryRun})
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count everything but issue no deletes")
	return cmd
}

func newResetCommand() *cobra.Command {
	var dryRun bool
	var limit int

	cmd := &cobra.Command{
		Use:   "reset-handle-limits",
		Short: "Reset every user's handle-change counter",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			job := jobs.NewResetHandleLimits(e.log, e.st)
			_, err = job.Run(cmd.Context(), jobs.Options{DryRun: dryRun, Limit: limit})
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "scan and chunk but issue no writes")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the user set (0 = no cap)")
	return cmd
}

func newBackfillCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "backfill-posts",
		Short: "Fill missing isHidden/ownerActive fields on posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			eng := engine.New(e.log, e.st, e.dir)
			path := "admin/backfill_posts/trigger/" + xid.New().String()
			ev := engine.Event{
				ID:     xid.New().String(),
				Change: store.Change{Kind: store.ChangeCreated, Path: path},
			}

			if dryRun {
				out := eng.BackfillPostsDryRun(cmd.Context(), ev)
				return out.Err
			}

			// the trigger document doubles as the completion marker, same
			// as when the migration is fired through the store
			b := e.st.Batch()
			b.Set(path, map[string]any{"requestedBy": "admin-cli"}, false)
			if err := b.Commit(cmd.Context()); err != nil {
				return fmt.Errorf("create backfill trigger: %w", err)
			}

			out := eng.BackfillPosts(cmd.Context(), ev)
			return out.Err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count posts missing visibility fields but issue no writes")
	return cmd
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel)

	if cfg.StoreBackend == "memory" {
		return &env{
			log:   log,
			st:    memstore.New(),
			dir:   identity.NewMemDirectory(),
			close: func() {},
		}, nil
	}

	st, err := fsstore.New(ctx, cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	dir, err := firebaseauth.New(ctx, cfg.ProjectID)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &env{log: log, st: st, dir: dir, close: func() { st.Close() }}, nil
}
