package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/msmeflow/quoteflow/internal/config"
	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/logging"
	"github.com/msmeflow/quoteflow/internal/server"
)

// app bundles what every command needs.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	provider *instrumentation.Provider
	sc       *server.ServerContext
}

// appOptions tunes bootstrap per command.
type appOptions struct {
	// logOutput defaults to stderr. stdout is reserved for command output
	// and for the MCP stdio transport.
	logOutput io.Writer
	debug     bool
	// instrument enables the OpenTelemetry provider.
	instrument bool
}

// bootstrap loads the configuration and wires the server context.
func bootstrap(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.debug {
		cfg.LogLevel = "debug"
	}
	if opts.logOutput == nil {
		opts.logOutput = os.Stderr
	}
	logger, err := logging.NewLogger(opts.logOutput, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	if opts.instrument {
		instrConfig := instrumentation.DefaultConfig()
		instrConfig.ServiceVersion = version
		a.provider, err = instrumentation.NewProvider(ctx, instrConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
		}
	}

	a.sc, err = server.NewServerContext(ctx, server.Options{
		Config:   cfg,
		Logger:   logger,
		Provider: a.provider,
	})
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.sc != nil {
		if err := a.sc.Shutdown(); err != nil {
			a.logger.Warn("error during shutdown", logging.Err(err))
		}
	}
	if a.provider != nil {
		if err := a.provider.Shutdown(ctx); err != nil {
			a.logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}
}

// requireUserID fails with a hint when nobody is signed in.
func (a *app) requireUserID(ctx context.Context) (userID, accessToken string, err error) {
	sess, err := a.sc.CurrentUser(ctx)
	if err != nil {
		return "", "", fmt.Errorf("not signed in, run 'quoteflow login' first: %w", err)
	}
	return sess.User.ID, sess.AccessToken, nil
}
