package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SimonWorku1/PrayerBuddy/internal/config"
	"github.com/SimonWorku1/PrayerBuddy/internal/engine"
	"github.com/SimonWorku1/PrayerBuddy/internal/identity"
	"github.com/SimonWorku1/PrayerBuddy/internal/identity/firebaseauth"
	"github.com/SimonWorku1/PrayerBuddy/internal/intake"
	"github.com/SimonWorku1/PrayerBuddy/internal/logging"
	"github.com/SimonWorku1/PrayerBuddy/internal/redis"
	"github.com/SimonWorku1/PrayerBuddy/internal/store"
	fsstore "github.com/SimonWorku1/PrayerBuddy/internal/store/firestore"
	"github.com/SimonWorku1/PrayerBuddy/internal/store/memstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_worker", "service", "prayerbuddy-worker", "store_backend", cfg.StoreBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, dir, cleanup, err := buildBackends(ctx, logger, cfg)
	if err != nil {
		logger.Error("backend_init_failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// dedup and dead-letter storage; the engine degrades to plain
	// at-least-once processing without it
	var dedup engine.Deduper
	if rc, err := redis.New(cfg.RedisDSN); err != nil {
		logger.Warn("redis_connect_failed", "error", err)
	} else {
		dedup = rc
		defer rc.Close()
	}

	eng := engine.New(logger, st, dir)
	dispatcher := engine.NewDispatcher(logger, eng, dedup, cfg.EventQueueSize)
	dispatcher.StartWorkers(cfg.EventWorkerCount)

	// with the in-memory backend the store itself delivers triggers
	if ms, ok := st.(*memstore.Store); ok {
		ms.Watch(dispatcher.Enqueue)
	}

	srv := intake.NewServer(logger, dispatcher, cfg.IntakeKey)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("worker_started", "addr", cfg.HTTPAddr)

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	dispatcher.StopWorkers()
	logger.Info("worker_stopped")
}

func buildBackends(ctx context.Context, logger *slog.Logger, cfg config.Config) (store.Store, identity.Directory, func(), error) {
	if cfg.StoreBackend == "memory" {
		logger.Info("using_memory_backends")
		return memstore.New(), identity.NewMemDirectory(), func() {}, nil
	}

	st, err := fsstore.New(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, nil, err
	}
	dir, err := firebaseauth.New(ctx, cfg.ProjectID)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}
	return st, dir, func() { st.Close() }, nil
}
