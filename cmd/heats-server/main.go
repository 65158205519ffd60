// Package main provides the HTTP server for heats runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mlheats/heats/internal/config"
	"github.com/mlheats/heats/internal/history"
	"github.com/mlheats/heats/internal/metrics"
	"github.com/mlheats/heats/internal/server"
)

// version is set at build time.
var version = "0.1.0"

func main() {
	// Parse flags
	port := flag.Int("port", 0, "listen port (default from HEATS_SERVER_PORT)")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	if *port != 0 {
		cfg.ServerPort = *port
	}

	// Initialize logging
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	slog.Info("starting heats-server", "port", cfg.ServerPort, "version", version)

	// Connect the optional run history store
	var store *history.Store
	histCfg := history.Config{
		URL:       cfg.HistoryURL,
		Namespace: cfg.HistoryNamespace,
		Database:  cfg.HistoryDatabase,
		Username:  cfg.HistoryUser,
		Password:  cfg.HistoryPass,
		AuthLevel: cfg.HistoryAuthLevel,
	}
	if histCfg.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		var err error
		store, err = history.Connect(ctx, histCfg, logger)
		cancel()
		if err != nil {
			slog.Error("failed to connect run history", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := store.Close(context.Background()); err != nil {
				slog.Error("failed to close run history", "error", err)
			}
		}()
	}

	srv := server.New(server.Config{
		Version: version,
		LogDir:  cfg.LogDir,
		Workers: cfg.Workers,
		History: store,
		Metrics: metrics.NewCollector(),
		Logger:  logger,
	})

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // Long for whole-log CSV downloads
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("API available", "url", fmt.Sprintf("http://localhost:%d/api/runs", cfg.ServerPort))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
