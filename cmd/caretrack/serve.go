package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/caretrack/internal/adapters/http/api"
	"github.com/okian/caretrack/internal/adapters/http/swagger"
	app "github.com/okian/caretrack/internal/app"
	"github.com/okian/caretrack/internal/config"
	"github.com/okian/caretrack/pkg/logger"
	"github.com/okian/caretrack/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func serveCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Root context with cancel on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := load(ctx)
			if err != nil {
				return err
			}
			if err := initLogging(cfg, os.Stdout); err != nil {
				return err
			}
			return runServer(ctx, cfg)
		},
	}
}

// newService builds the case service configured by cfg.
func newService(cfg *config.Config, l logger.Logger) (*app.Service, error) {
	opts, err := analyzerOptions(cfg)
	if err != nil {
		return nil, err
	}
	return app.New(
		app.WithLogger(l),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMaxWindowDays(cfg.MaxWindowDays),
		app.WithAnalyzerOptions(opts...),
	), nil
}

// newMux registers the docs and business routes for svc.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.WithMaxBodyBytes(cfg.MaxBodyBytes)).Register(ctx, mux)
	return mux
}

func runServer(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	svc, err := newService(cfg, log.Named("service"))
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		// ctx is already cancelled here.
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(stopCtx, "service shutdown failed", logger.Error(err))
		}
	}()

	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	// GetStats refreshes the queue gauge itself.
	stats := svc.GetStats()
	metrics.UpdateWorkerCount(stats.WorkerCount)
	if rt := stats.Runtime; rt != nil {
		metrics.UpdateRepositorySizes(rt.Cases, rt.Events, rt.Scales)
	}
}
