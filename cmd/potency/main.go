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

	"github.com/MikeSquared-Agency/Potency/internal/api"
	"github.com/MikeSquared-Agency/Potency/internal/config"
	"github.com/MikeSquared-Agency/Potency/internal/hermes"
	"github.com/MikeSquared-Agency/Potency/internal/predictor"
	"github.com/MikeSquared-Agency/Potency/internal/session"
	"github.com/MikeSquared-Agency/Potency/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logging.Logger(os.Stdout)
	slog.SetDefault(logger)

	kind, err := predictor.ParseKind(cfg.Model.Strategy)
	if err != nil {
		logger.Error("invalid model strategy", "error", err)
		os.Exit(1)
	}
	if _, err := predictor.NewStrategy(predictor.KindLinear, cfg.Model.TestRatio, cfg.Model.Seed); err != nil {
		logger.Error("invalid linear strategy settings", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Model store
	models, err := store.Open(ctx, store.Options{
		Backend:     cfg.Model.Store,
		Name:        cfg.Model.Name,
		Path:        cfg.Model.Path,
		DatabaseURL: cfg.Database.URL,
		SQLiteDSN:   cfg.Model.SQLiteDSN,
	})
	if err != nil {
		logger.Error("failed to open model store", "error", err)
		os.Exit(1)
	}
	defer models.Close()
	logger.Info("model store ready", "location", models.Location())

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}
	events := hermes.NewPublisher(hermesClient, logger)

	// Sessions
	opts := session.DefaultOptions()
	opts.DefaultKind = kind
	opts.TestRatio = cfg.Model.TestRatio
	opts.Seed = cfg.Model.Seed
	opts.SkipMalformed = cfg.Ingest.SkipMalformed
	opts.IdleTimeout = cfg.IdleTimeout()
	opts.SweepInterval = cfg.SweepInterval()
	if cfg.Ingest.PreviewRows > 0 {
		opts.PreviewRows = cfg.Ingest.PreviewRows
	}
	if cfg.Plot.CurvePoints > 0 {
		opts.CurvePoints = cfg.Plot.CurvePoints
	}
	sessions := session.NewManager(opts, models, events, logger)
	sessions.Start(ctx)
	defer sessions.Stop()
	logger.Info("session manager started", "idle_timeout", cfg.IdleTimeout(), "default_strategy", kind)

	// API server
	router := api.NewRouter(sessions, models, cfg, logger)
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsRouter := api.NewMetricsRouter()
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
