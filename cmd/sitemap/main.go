package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/couchcryptid/biogas-sitemap/internal/adapter/dataset"
	httpadapter "github.com/couchcryptid/biogas-sitemap/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/biogas-sitemap/internal/adapter/kafka"
	"github.com/couchcryptid/biogas-sitemap/internal/adapter/ors"
	"github.com/couchcryptid/biogas-sitemap/internal/config"
	"github.com/couchcryptid/biogas-sitemap/internal/domain"
	"github.com/couchcryptid/biogas-sitemap/internal/explorer"
	"github.com/couchcryptid/biogas-sitemap/internal/heat"
	"github.com/couchcryptid/biogas-sitemap/internal/isochrone"
	"github.com/couchcryptid/biogas-sitemap/internal/observability"
	"github.com/couchcryptid/biogas-sitemap/internal/session"
)

// readiness flips to ready once the dataset is loaded and back on shutdown.
type readiness struct {
	ready atomic.Bool
}

func (r *readiness) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("dataset not loaded")
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	sizeBy, err := domain.ParseSizeBy(cfg.SizeBy)
	if err != nil {
		logger.Error("invalid sizing mode", "error", err)
		os.Exit(1)
	}
	mode, err := explorer.ParseVisibilityMode(cfg.VisibilityMode)
	if err != nil {
		logger.Error("invalid visibility mode", "error", err)
		os.Exit(1)
	}

	ds, err := dataset.LoadFile(cfg.SitesPath, dataset.Options{
		SizeBy:    sizeBy,
		MinRadius: cfg.MinRadius,
		MaxRadius: cfg.MaxRadius,
	}, logger)
	if err != nil {
		logger.Error("failed to load dataset", "path", cfg.SitesPath, "error", err)
		os.Exit(1)
	}
	metrics.SitesLoaded.Set(float64(ds.Len()))

	hx, err := heat.Build(ds.Sites, cfg.HeatResolution)
	if err != nil {
		logger.Error("failed to build heat layers", "error", err)
		os.Exit(1)
	}

	initial := explorer.Preselect(ds.Sites, mode, cfg.PreselectTechno, cfg.PreselectStatus)
	opts := explorer.Options{Debounce: cfg.SearchDebounce, FitPadding: cfg.SearchFitPadding}
	sessions, err := session.NewStore(cfg.SessionCacheSize, func(view explorer.MapView) *explorer.Controller {
		return explorer.NewController(ds.Sites, initial, view, opts, logger, metrics)
	}, logger, metrics)
	if err != nil {
		logger.Error("failed to create session store", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	// Isochrone telemetry (feature-flagged via TELEMETRY_ENABLED / KAFKA_BROKERS).
	var publisher *kafkaadapter.Publisher
	if cfg.TelemetryEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, logger, metrics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			publisher.Run(ctx)
		}()
		logger.Info("isochrone telemetry enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.TelemetryTopic)
	} else {
		logger.Info("isochrone telemetry disabled")
	}

	// Isochrones (feature-flagged via ISOCHRONE_ENABLED / ORS_API_KEY).
	var fetcher session.Fetcher
	if cfg.IsochroneEnabled {
		direct := ors.NewClient(cfg.IsochroneAPIKey, cfg.IsochroneBaseURL, cfg.IsochroneTimeout, logger)
		var relay isochrone.Transport
		if cfg.IsochroneProxyURL != "" {
			relay = ors.NewRelayClient(cfg.IsochroneAPIKey, cfg.IsochroneBaseURL, cfg.IsochroneProxyURL, cfg.IsochroneTimeout, logger)
		}
		var pub isochrone.Publisher
		if publisher != nil {
			pub = publisher
		}
		fetcher = isochrone.NewFetcher(direct, relay, pub, cfg.IsochroneMaxRange, logger, metrics)
		metrics.IsochroneEnabled.Set(1)
		logger.Info("isochrones enabled",
			"base_url", cfg.IsochroneBaseURL,
			"relay", cfg.IsochroneProxyURL != "",
			"ranges", cfg.IsochroneRanges,
			"timeout", cfg.IsochroneTimeout,
		)
	} else {
		logger.Info("isochrones disabled")
	}

	ready := &readiness{}
	api := httpadapter.NewAPI(ds, hx, sessions, fetcher, cfg.IsochroneRanges, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, api, ready, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()
	ready.ready.Store(true)

	<-ctx.Done()
	logger.Info("shutting down")
	ready.ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	sessions.Close()

	// The publisher drains its queue once ctx is cancelled.
	wg.Wait()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
