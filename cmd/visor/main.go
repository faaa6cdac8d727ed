// Command visor serves the fire-incident dashboard for the configured
// spreadsheet.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/fire-incident-visor/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/fire-incident-visor/internal/adapter/kafka"
	"github.com/couchcryptid/fire-incident-visor/internal/config"
	"github.com/couchcryptid/fire-incident-visor/internal/domain"
	"github.com/couchcryptid/fire-incident-visor/internal/loader"
	"github.com/couchcryptid/fire-incident-visor/internal/observability"
	"github.com/couchcryptid/fire-incident-visor/internal/pipeline"
	"github.com/couchcryptid/fire-incident-visor/internal/render"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	pages, err := render.NewRenderer()
	if err != nil {
		logger.Error("failed to parse templates", "error", err)
		os.Exit(1)
	}

	cache := loader.NewCache(loader.NewReader(logger), cfg.LoadCacheSize, metrics, logger)

	// Snapshot export is feature-flagged via KAFKA_ENABLED.
	var (
		publisher pipeline.Publisher
		writer    *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		metrics.PublishEnabled.Set(1)
		logger.Info("snapshot export enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("snapshot export disabled")
	}

	p := pipeline.New(cache, publisher, logger, metrics, pipeline.Options{
		Path:     cfg.InputPath,
		Location: cfg.Location,
	})

	mapOpts := render.DefaultMapOptions()
	mapOpts.ClusterRadius = cfg.MapClusterRadius

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, pages, mapOpts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go p.Run(ctx)

	// Warm the cache so the first page view does not pay for the read. A
	// missing file is reported on the page, not fatal here.
	if _, err := p.Build(ctx); err != nil && !errors.Is(err, domain.ErrSourceNotFound) {
		logger.Warn("initial build failed", "error", err)
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
