package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/VIPHakim/netboost/internal/boost"
	"github.com/VIPHakim/netboost/internal/platform/config"
	"github.com/VIPHakim/netboost/internal/platform/logging"
	"github.com/VIPHakim/netboost/internal/qod"
	"github.com/VIPHakim/netboost/internal/registry"
	"github.com/VIPHakim/netboost/internal/server"
	"github.com/VIPHakim/netboost/internal/store"
	"github.com/VIPHakim/netboost/internal/websocket"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func runGracefulShutdown(srv *server.Server, sched *boost.Scheduler, notifier *boost.Notifier, reconciler *boost.Reconciler, hub *websocket.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		notifier.Stop()
		reconciler.Stop()
		sched.Stop()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	st, err := store.New(cfg.DataDir, clock)
	if err != nil {
		slog.Error("Failed to open session store", "error", err)
		os.Exit(1)
	}

	reg, err := registry.New(cfg.DataDir)
	if err != nil {
		slog.Error("Failed to open device registry", "error", err)
		os.Exit(1)
	}

	tokens := qod.NewTokenCache(cfg.QodClientID, cfg.QodClientSecret, cfg.OAuthTokenURL, clock)
	api := qod.NewClient(cfg.QodBaseURL, tokens, qod.ClientOptions{
		RequestsPerSecond: cfg.QodRequestsPerSecond,
		Burst:             cfg.QodRequestBurst,
	})

	sched := boost.NewScheduler(clock)
	controller := boost.NewController(st, api, sched, clock)
	planner := boost.NewPlanner(st, controller, sched, clock, reg)

	// Re-arm or catch up persisted boost windows before serving traffic.
	if err := planner.Restore(context.Background()); err != nil {
		slog.Error("Failed to restore scheduled boost windows", "error", err)
		os.Exit(1)
	}

	hub := websocket.NewHub(clock)
	feed, unsubscribe := st.Subscribe()
	defer unsubscribe()
	go hub.Consume(feed)

	notifier := boost.NewNotifier(st, controller, clock, nil)
	go notifier.Run(context.Background())

	reconciler := boost.NewReconciler(st, st, controller, clock, cfg.ReconcileFastInterval, cfg.ReconcileSlowInterval, hub.ViewerCount)
	go reconciler.Run(context.Background())

	srv := server.NewServer(cfg, st, reg, controller, planner, tokens, hub, clock)

	done := runGracefulShutdown(srv, sched, notifier, reconciler, hub)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
