package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tymofiyyy/pocket/internal/config"
	"github.com/Tymofiyyy/pocket/internal/engine"
	"github.com/Tymofiyyy/pocket/internal/sender"
	"github.com/Tymofiyyy/pocket/internal/store"
	ws "github.com/Tymofiyyy/pocket/internal/websocket"
	"github.com/Tymofiyyy/pocket/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadWorker()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Connect the sender pool to every active account.
	images := sender.NewImageResolver(cfg.UploadsDir)
	pool := sender.NewPool(sender.NewGatewayFactory(cfg.SenderGatewayURL), pgStore, images, logger)

	accounts, err := pgStore.ActiveSenderAccounts(ctx)
	if err != nil {
		logger.Error("failed to load sender accounts", "error", err)
		os.Exit(1)
	}
	pool.ConnectAll(ctx, accounts)
	defer pool.DisconnectAll()

	if pool.ConnectedCount() == 0 {
		logger.Warn("no sender accounts connected, dispatches will fail until one connects")
	}

	// Live dispatch feed for the admin dashboard.
	hub := ws.NewHub(logger)
	go hub.Run()

	gate := engine.NewConditionEvaluator(pgStore, logger)
	processor := worker.NewProcessor(pgStore, pgStore, gate, pool, hub, logger, cfg.QueueBatchSize, cfg.DispatchPacing)
	scheduler := worker.NewScheduler(processor, pgStore, logger, cfg.QueueInterval, cfg.SweepInterval)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", hub.HandleWebSocket)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("worker feed listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker feed server error", "error", err)
			os.Exit(1)
		}
	}()

	go scheduler.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker feed forced to shutdown", "error", err)
	}

	logger.Info("worker stopped")
}
