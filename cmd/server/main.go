package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"

	"github.com/tendant/simple-news/pkg/simplenews/api"
	"github.com/tendant/simple-news/pkg/simplenews/config"
	"github.com/tendant/simple-news/pkg/simplenews/scan"
)

func main() {
	cfg, err := config.Load(config.WithDotEnv(""), config.WithEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(os.Stderr, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logging: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// newLogger builds a colored text logger for development and JSON otherwise.
func newLogger(w io.Writer, cfg *config.ServerConfig) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    cfg.IsProduction(),
	})), nil
}

func run(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := cfg.Build(ctx, logger, reg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Portal.Start(ctx, cfg.RefreshSchedule); err != nil {
		return fmt.Errorf("failed to schedule catalog refresh: %w", err)
	}

	if cfg.SweepSchedule != "" {
		sweeps := cron.New()
		if _, err := sweeps.AddFunc(cfg.SweepSchedule, func() {
			sweep(ctx, app.Sweeper, cfg.SweepGrace, logger)
		}); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", cfg.SweepSchedule, err)
		}
		sweeps.Start()
		defer func() { <-sweeps.Stop().Done() }()
	}

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithMetricsGatherer(reg),
	}
	if app.ServesMedia {
		opts = append(opts, api.WithMediaRoute(cfg.MediaMountPath))
	}
	handler := api.New(app.Portal, opts...)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("news server starting",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"database_type", cfg.DatabaseType,
			"storage_type", cfg.StorageType)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exiting")
	return nil
}

func sweep(ctx context.Context, sweeper *scan.Sweeper, grace time.Duration, logger *slog.Logger) {
	res, err := sweeper.Sweep(ctx, scan.SweepOptions{GracePeriod: grace})
	if err != nil {
		logger.Error("orphan sweep failed", "error", err)
		return
	}
	logger.Info("orphan sweep finished",
		"scanned", res.TotalScanned,
		"orphaned", res.TotalOrphaned,
		"deleted", res.TotalDeleted,
		"failed", res.TotalFailed)
}
