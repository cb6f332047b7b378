package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/logging"
)

const (
	DefaultMetricsAddr = ":9090"

	metricsReadHeaderTimeout = 10 * time.Second
	metricsWriteTimeout      = 10 * time.Second
	metricsIdleTimeout       = 60 * time.Second
)

var (
	ErrNoProvider       = errors.New("instrumentation provider is required for the metrics server")
	ErrProviderDisabled = errors.New("instrumentation is disabled")
)

// MetricsServer serves /metrics on its own port so scraping never goes
// through the local REST API. When a HealthChecker is given, the health
// endpoints are mounted there as well.
type MetricsServer struct {
	addr   string
	health *HealthChecker
	logger *slog.Logger

	httpServer *http.Server
}

// NewMetricsServer fails unless provider is non-nil and enabled. health may
// be nil.
func NewMetricsServer(addr string, provider *instrumentation.Provider, health *HealthChecker, logger *slog.Logger) (*MetricsServer, error) {
	switch {
	case provider == nil:
		return nil, ErrNoProvider
	case !provider.Enabled():
		return nil, ErrProviderDisabled
	}
	if addr == "" {
		addr = DefaultMetricsAddr
	}
	return &MetricsServer{
		addr:   addr,
		health: health,
		logger: logging.WithComponent(logger, "metrics"),
	}, nil
}

func (s *MetricsServer) Addr() string { return s.addr }

// Handler returns the mux served by Start. The otel prometheus exporter
// registers with the default registry, which promhttp.Handler exposes.
func (s *MetricsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if s.health != nil {
		s.health.RegisterHealthEndpoints(mux)
	}
	return mux
}

// Start blocks until Shutdown and then returns http.ErrServerClosed.
func (s *MetricsServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: metricsReadHeaderTimeout,
		WriteTimeout:      metricsWriteTimeout,
		IdleTimeout:       metricsIdleTimeout,
	}
	s.logger.Info("metrics server listening", slog.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("metrics server stopping")
	return s.httpServer.Shutdown(ctx)
}
