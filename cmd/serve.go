package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/msmeflow/quoteflow/internal/api"
	"github.com/msmeflow/quoteflow/internal/config"
	"github.com/msmeflow/quoteflow/internal/logging"
	"github.com/msmeflow/quoteflow/internal/server"
)

const shutdownTimeout = 30 * time.Second

// serveOptions are the flag overrides of the serve command.
type serveOptions struct {
	debug          bool
	addr           string
	metricsEnabled bool
	metricsAddr    string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API used by the browser extension",
		Long: `Run the REST API, the health endpoints and the background session
refresher. Configuration comes from the environment and an optional .env file
in the working directory.

Endpoints:
  /api/...                  auth, files, quotations, viewer, pdf, inbox
  /healthz, /readyz         liveness and readiness
  /healthz/detailed         dependency and refresher status
  /auth/callback            federated sign-in redirect target`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("metrics-enabled") && os.Getenv("METRICS_ENABLED") == "true" {
				opts.metricsEnabled = true
			}
			return runServe(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "API listen address (default: QUOTEFLOW_ADDR or 127.0.0.1:8787)")
	cmd.Flags().BoolVar(&opts.metricsEnabled, "metrics-enabled", false, "Serve Prometheus metrics on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Metrics server address (default: METRICS_ADDR or :9090)")

	return cmd
}

func runServe(opts serveOptions) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := bootstrap(shutdownCtx, appOptions{debug: opts.debug, instrument: true})
	if err != nil {
		return err
	}
	defer a.close(context.Background())
	logger := logging.WithComponent(a.logger, "serve")

	cfg := a.cfg
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	cfg.Metrics.Enabled = cfg.Metrics.Enabled || opts.metricsEnabled

	health := server.NewHealthChecker(a.sc)

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && a.provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(cfg.Metrics.Addr, a.provider, health, a.logger)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
	}

	go a.sc.Refresher().Run(shutdownCtx)

	apiServer := api.NewServer(apiDependencies(a.sc, cfg, health))
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("quoteflow API starting",
		slog.String("addr", cfg.Addr),
		slog.String("app_url", cfg.AppURL),
		slog.String("storage", cfg.Storage.Backend),
		slog.Bool("valkey", cfg.Valkey.Addr != ""),
		slog.Bool("database", cfg.Database.URL != ""))

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received, stopping API server")
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("API server stopped with error: %w", err)
		}
	}

	health.SetReady(false)
	ctx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down API server: %w", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Warn("error shutting down metrics server", logging.Err(err))
		}
	}
	logger.Info("API server gracefully stopped")
	return nil
}

// apiDependencies adapts the server context to the API's dependencies.
// The Google-backed services are resolved per request, so a user who signs
// in after startup can use them without a restart.
func apiDependencies(sc *server.ServerContext, cfg config.Config, health *server.HealthChecker) api.Dependencies {
	deps := api.Dependencies{
		Auth:      sc.Auth(),
		Refresher: sc.Refresher(),
		Files:     sc.Files(),
		Generator: sc.Generator(),
		PDF:       sc.PDFOptions(),
		Sheets: func() (api.SheetExporter, error) {
			s, err := sc.Sheets()
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Inbox: func() (api.Inbox, error) {
			s, err := sc.Inbox()
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Mailbox: func() (api.Mailbox, error) {
			m, err := sc.Mailbox()
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		Injector: func() (api.Injector, error) {
			i, err := sc.Injector()
			if err != nil {
				return nil, err
			}
			return i, nil
		},
		Health:  health.Handlers(),
		Logger:  sc.Logger(),
		Metrics: sc.Metrics(),
	}
	if cfg.Storage.Backend == config.StorageLocal && cfg.Storage.PublicBaseURL == "" {
		deps.ObjectsDir = cfg.Storage.LocalDir
	}
	return deps
}
