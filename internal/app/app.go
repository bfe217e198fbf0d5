package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"optchain/internal/collector"
	"optchain/internal/config"
	"optchain/internal/events"
	"optchain/internal/expiry"
	"optchain/internal/exporter"
	"optchain/internal/files"
	"optchain/internal/infrastructure"
	"optchain/internal/metrics"
	"optchain/internal/provider"
	"optchain/internal/services"
	"optchain/internal/sink"
	handlers "optchain/internal/transport/http"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Tracker       *metrics.Tracker
	Resolver      *expiry.Resolver
	Collector     *collector.Collector
	HealthService *services.HealthService
	Server        *http.Server
}

// NewApplication wires the collector from cfg. A nil provider means the
// snapshot file named by cfg.Collector.SnapshotFile.
func NewApplication(cfg *config.Config, logger *slog.Logger, p provider.Provider) (*Application, error) {
	logger = infrastructure.LoggerOrDefault(logger)

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Any("indices", cfg.Collector.Indices))

	paths, err := config.NewPaths(cfg.Storage.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, cfg.Metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	reg, err := newMetricsRegistry(cfg.Metrics, otelProviders)
	if err != nil {
		return nil, err
	}
	tracker := metrics.NewTracker(reg, logger)

	if p == nil {
		if cfg.Collector.SnapshotFile == "" {
			return nil, errors.New("no quote provider configured: set collector.snapshot_file")
		}
		p, err = provider.NewSnapshotFile(cfg.Collector.SnapshotFile, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot provider: %w", err)
		}
	}

	resolver := expiry.NewResolver(
		expiry.WithTTL(cfg.Expiry.TTL),
		expiry.WithStrikeWindow(cfg.Expiry.StrikeWindow),
		expiry.WithLogger(logger),
		expiry.WithEventSink(events.MultiSink{events.NewLogSink(logger), events.SpanSink{}}),
	)

	manager := files.NewManager(paths, logger)
	csvSink := sink.NewCSVSink(exporter.NewCSVWriter(paths, logger), manager, tracker, logger)

	coll := collector.New(p, resolver, csvSink, collector.Options{
		Indices:     cfg.Collector.Indices,
		OffsetRange: cfg.Collector.OffsetRange,
		MaxExpiries: cfg.Collector.MaxExpiries,
		Tracer:      otelProviders.Tracer,
		Logger:      logger,
	})

	// Three missed intervals make an index stale. Scheduled runs pause
	// between sessions, so staleness is not tracked for them.
	staleAfter := 3 * cfg.Collector.Interval
	if cfg.Collector.Schedule != "" {
		staleAfter = 0
	}
	health := services.NewHealthService(config.AppVersion, coll, staleAfter, logger)

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Tracker:       tracker,
		Resolver:      resolver,
		Collector:     coll,
		HealthService: health,
	}

	if cfg.Metrics.ListenAddr != "" {
		a.Server = &http.Server{
			Addr: cfg.Metrics.ListenAddr,
			Handler: handlers.NewRouter(handlers.RouterOptions{
				Health:  handlers.NewHealthHandler(health, logger),
				Metrics: otelProviders.MetricsHTTP,
				Tracer:  otelProviders.Tracer,
				Logger:  logger,
			}),
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}

	return a, nil
}

// newMetricsRegistry selects the metrics backend. "none" yields a nil
// registry and therefore a no-op tracker.
func newMetricsRegistry(cfg config.MetricsConfig, providers *infrastructure.OTelProviders) (metrics.Registry, error) {
	switch cfg.Backend {
	case "prometheus":
		reg, err := metrics.NewPromRegistry(providers.Registry, cfg.Namespace)
		if err != nil {
			return nil, err
		}
		return reg, nil
	case "otel":
		reg, err := metrics.NewOTelRegistry(providers.Meter, cfg.Namespace)
		if err != nil {
			return nil, err
		}
		return reg, nil
	default:
		return nil, nil
	}
}

// Start launches the HTTP server in the background
func (a *Application) Start(ctx context.Context) {
	if a.Server == nil {
		return
	}

	go func() {
		a.Logger.InfoContext(ctx, "Starting HTTP server", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "HTTP server failed", slog.String("error", err.Error()))
		}
	}()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// RunOnce runs a single collection round for every index and returns
// the reports.
func (a *Application) RunOnce(ctx context.Context) ([]collector.CycleReport, error) {
	defer func() {
		if err := a.Stop(context.WithoutCancel(ctx)); err != nil {
			a.Logger.ErrorContext(ctx, "Shutdown failed", slog.String("error", err.Error()))
		}
	}()
	return a.Collector.RunAll(ctx)
}

// Run serves the HTTP endpoints and collects on the configured schedule,
// or every interval when none is set, until ctx is done. It then shuts
// down.
func (a *Application) Run(ctx context.Context) error {
	a.Start(ctx)

	var err error
	if spec := a.Config.Collector.Schedule; spec != "" {
		err = collector.NewScheduler(a.Collector).Run(ctx, spec)
	} else {
		err = a.Collector.Run(ctx, a.Config.Collector.Interval)
	}
	if err != nil {
		_ = a.Stop(context.WithoutCancel(ctx))
		return err
	}

	return a.Stop(context.WithoutCancel(ctx))
}
