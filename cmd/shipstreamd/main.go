package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvelichkov/shipstream/internal/api"
	"github.com/nvelichkov/shipstream/internal/archive"
	"github.com/nvelichkov/shipstream/internal/client"
	"github.com/nvelichkov/shipstream/internal/config"
	"github.com/nvelichkov/shipstream/internal/domain"
	"github.com/nvelichkov/shipstream/internal/enrich"
	"github.com/nvelichkov/shipstream/internal/store"
	"github.com/nvelichkov/shipstream/internal/transport"
	ws "github.com/nvelichkov/shipstream/internal/websocket"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Aggregation store — owned here and injected everywhere, never global.
	eventStore := store.New(cfg.HistoryCapacity, logger)

	// Optional Redis snapshot for warm restarts
	var snapshot *store.Snapshot
	if cfg.RedisURL != "" {
		snapshot, err = store.NewSnapshot(ctx, cfg.RedisURL, eventStore, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer snapshot.Close()
		if err := snapshot.Restore(ctx); err != nil {
			logger.Warn("snapshot restore failed, starting cold", "error", err)
		}
		go snapshot.Run(ctx)
		logger.Info("connected to redis")
	}

	// Optional Postgres archive
	var archiver *archive.Archiver
	if cfg.DatabaseURL != "" {
		archiver, err = archive.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		archiver.Start(ctx)
		logger.Info("connected to postgres")
	}

	// Reconnecting event client with its subscribers
	feedClient := client.New(transport.Endpoint{
		DuplexURL: cfg.DuplexURL,
		PushURL:   cfg.PushURL,
		Token:     cfg.FeedToken,
	}, logger)

	enricher := enrich.New(eventStore, logger)
	feedClient.Subscribe(enricher.HandleEvent)

	hub := ws.NewHub(logger)
	go hub.Run(ctx)
	feedClient.Subscribe(hub.HandleEvent)

	if archiver != nil {
		feedClient.Subscribe(func(e *domain.Event) {
			archiver.Enqueue(*e)
		})
	}

	feedClient.Connect(ctx)

	// HTTP query surface
	router := api.NewRouter(eventStore, feedClient, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	feedClient.Close()
	if archiver != nil {
		archiver.Stop() // drains the queue before the context goes away
	}
	cancel() // stops hub and snapshot loop (final snapshot written on the way out)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
