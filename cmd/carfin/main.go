// CarFin recommendation server — serves the recommendation API and
// orchestrates the analyzer agents and the hybrid predictor per session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/carfin-ai/carfin/pkg/agent"
	"github.com/carfin-ai/carfin/pkg/api"
	"github.com/carfin-ai/carfin/pkg/config"
	"github.com/carfin-ai/carfin/pkg/database"
	"github.com/carfin-ai/carfin/pkg/events"
	"github.com/carfin-ai/carfin/pkg/fusion"
	"github.com/carfin-ai/carfin/pkg/orchestrator"
	"github.com/carfin-ai/carfin/pkg/version"
)

func main() {
	envPath := flag.String("env-file", ".env", "Path to .env file")
	flag.Parse()

	// Load .env before anything reads the environment.
	if err := godotenv.Load(*envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envPath, "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting CarFin",
		"version", version.Full(),
		"host", cfg.Server.Host,
		"port", cfg.Server.Port)

	ctx := context.Background()

	// Database and vehicle store.
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		logger.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logger.Error("Error closing database client", "error", err)
		}
	}()
	logger.Info("Connected to PostgreSQL database")

	store := database.NewVehicleStore(dbClient)

	// Registry with the built-in analyzers and the hybrid predictor.
	registry := agent.NewRegistry()
	for _, a := range []agent.Analyzer{
		agent.NewVehicleExpert(store),
		agent.NewFinanceExpert(store),
		agent.NewReviewAnalyst(store),
	} {
		if err := registry.RegisterAnalyzer(a); err != nil {
			logger.Error("Failed to register analyzer", "error", err)
			os.Exit(1)
		}
	}
	if err := registry.SetPredictor(agent.NewHybridPredictor(store)); err != nil {
		logger.Error("Failed to register predictor", "error", err)
		os.Exit(1)
	}
	logger.Info("Agent registry initialized", "agents", registry.AgentIDs())

	// Event fabric, fusion, orchestration.
	bus := events.NewBus(events.Config{
		PerSubscriberBuffer: cfg.Bus.PerSubscriberBuffer,
		SessionReapGrace:    cfg.Bus.SessionReapGrace,
	})
	defer bus.Shutdown()

	fuser := fusion.NewFuser(fusion.Config{
		TopK:          cfg.Fusion.TopK,
		PerSourceTake: cfg.Fusion.PerSourceTake,
	})
	orch := orchestrator.New(registry, bus, fuser, orchestrator.Config{
		RunnerDeadline: cfg.Orchestrator.RunnerDeadline,
	}, logger)

	// HTTP surface.
	server := api.NewServer(cfg.Server, bus, orch, dbClient, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		logger.Error("HTTP server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	logger.Info("CarFin stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
