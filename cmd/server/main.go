package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/example/visited-atlas/internal/config"
	"github.com/example/visited-atlas/internal/observability"
	"github.com/example/visited-atlas/internal/overlay"
	"github.com/example/visited-atlas/internal/server"
	"github.com/example/visited-atlas/internal/snapshot"
	"github.com/example/visited-atlas/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := log.With().Str("app", cfg.AppName).Logger()
	observability.RegisterRuntimeCollectors()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := observability.Start(ctx, observability.Config{
		ServiceName:  cfg.AppName,
		MetricsAddr:  cfg.MetricsAddr,
		OTLPEndpoint: cfg.OTLPEndpoint,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer telemetryShutdown(context.Background())

	resources, err := config.NewResources(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize resources")
	}
	defer resources.Close()

	store, err := buildStore(ctx, cfg, resources, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize visit store")
	}
	defer store.Close()

	catalog, err := os.ReadFile(cfg.CatalogPath)
	if err != nil {
		// The catalog is a leaf: without it the selection input degrades to
		// empty, but sync keeps working.
		logger.Warn().Err(err).Str("path", cfg.CatalogPath).Msg("catalog unavailable, serving empty list")
	}

	features, err := overlay.LoadFeatures(cfg.FeaturesPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.FeaturesPath).Msg("feature source unavailable, overlay endpoint disabled")
	}

	handlerOpts := []server.HandlerOption{}
	if resources.Object != nil && len(features) > 0 {
		uploader := snapshot.NewObjectUploader(resources.Object, cfg.ObjectBucket)
		worker := snapshot.NewWorker(store, features, uploader, logger, snapshot.WithInterval(cfg.SnapshotInterval))
		worker.Start(ctx)
		handlerOpts = append(handlerOpts, server.WithDirtyMarker(worker))
		logger.Info().Str("bucket", cfg.ObjectBucket).Msg("overlay snapshot worker started")
	}

	handler := server.NewHandler(store, catalog, features, logger, handlerOpts...)
	httpServer := &http.Server{Addr: cfg.HTTPListenAddr, Handler: handler.Mux()}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("http server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return
	}
	logger.Info().Msg("shutdown complete")
}

func buildStore(ctx context.Context, cfg config.Config, resources *config.Resources, logger zerolog.Logger) (storage.VisitStore, error) {
	var store storage.VisitStore

	switch cfg.StoreBackend {
	case "postgres":
		pg := storage.NewPostgresStore(resources.Postgres)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure postgres schema: %w", err)
		}
		store = pg
	case "sqlite":
		sl, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = sl
	case "memory":
		store = storage.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if resources.Redis != nil {
		store = storage.NewCachedStore(store, resources.Redis, cfg.CacheTTL, logger)
		logger.Info().Dur("ttl", cfg.CacheTTL).Msg("visited-set cache enabled")
	}

	logger.Info().Str("backend", cfg.StoreBackend).Msg("visit store initialized")
	return store, nil
}
