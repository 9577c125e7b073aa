package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/storm-outage-risk/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/storm-outage-risk/internal/adapter/kafka"
	"github.com/couchcryptid/storm-outage-risk/internal/config"
	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	"github.com/couchcryptid/storm-outage-risk/internal/engine"
	"github.com/couchcryptid/storm-outage-risk/internal/observability"
	"github.com/couchcryptid/storm-outage-risk/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// The model and network are validated before any message is consumed.
	assessor, err := loadAssessor(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to build assessor", "error", err,
			"network_path", cfg.NetworkPath, "model_path", cfg.ModelPath)
		os.Exit(1)
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(assessor)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize,
		pipeline.WithWorkers(cfg.AssessWorkers))

	var onDemand httpadapter.Assessor = assessor
	if cfg.AssessCacheSize > 0 {
		cached, err := engine.NewCachedAssessor(assessor, cfg.AssessCacheSize)
		if err != nil {
			logger.Error("failed to build assessment cache", "error", err)
			os.Exit(1)
		}
		onDemand = cached
		logger.Info("on-demand assessment cache enabled", "cache_size", cfg.AssessCacheSize)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, onDemand, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start assessment pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func loadAssessor(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*engine.Assessor, error) {
	data, err := os.ReadFile(cfg.NetworkPath)
	if err != nil {
		return nil, fmt.Errorf("read network: %w", err)
	}
	network, err := domain.ParseNetwork(data)
	if err != nil {
		return nil, err
	}
	model, err := config.LoadModel(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	return engine.NewAssessor(network, model, logger, metrics)
}
