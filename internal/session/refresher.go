package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/logging"
)

// DefaultRefreshInterval is the refresh timer period.
const DefaultRefreshInterval = time.Hour

// Exchanger trades a refresh token for a new token pair.
type Exchanger interface {
	RefreshToken(ctx context.Context, refreshToken string) (TokenPair, error)
}

// Status is a snapshot of the refresher for health reporting.
type Status struct {
	LastRun     time.Time `json:"last_run,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// Refresher exchanges the stored refresh token on a fixed timer.
//
// A tick does nothing unless both tokens are stored. A failed exchange
// leaves the stale tokens in place until the next tick; there is no retry.
// The failure is kept in Status so the UI can show a banner.
type Refresher struct {
	store     *Store
	exchanger Exchanger
	interval  time.Duration
	logger    *slog.Logger
	metrics   *instrumentation.Metrics

	mu     sync.RWMutex
	status Status
	// lastErr is the error behind status.LastError.
	lastErr error
}

// NewRefresher creates a Refresher. A non-positive interval uses
// DefaultRefreshInterval.
func NewRefresher(store *Store, exchanger Exchanger, interval time.Duration, logger *slog.Logger, metrics *instrumentation.Metrics) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		store:     store,
		exchanger: exchanger,
		interval:  interval,
		logger:    logging.WithComponent(logger, "refresher"),
		metrics:   metrics,
	}
}

// Run ticks until ctx is cancelled. The first refresh happens one interval
// after start.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce performs a single tick. It reports whether tokens were
// replaced.
func (r *Refresher) RefreshOnce(ctx context.Context) (bool, error) {
	access, refresh, err := r.store.Tokens(ctx)
	if err != nil {
		r.fail(ctx, err)
		return false, err
	}
	if access == "" || refresh == "" {
		r.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshSkipped)
		r.logger.Debug("no stored tokens, skipping refresh")
		return false, nil
	}

	pair, err := r.exchanger.RefreshToken(ctx, refresh)
	if err == nil && (pair.AccessToken == "" || pair.RefreshToken == "") {
		err = errors.New("refresh response is missing tokens")
	}
	if err == nil {
		err = r.store.ApplyRefresh(ctx, pair)
	}
	if err != nil {
		r.fail(ctx, err)
		return false, err
	}

	now := time.Now()
	r.mu.Lock()
	r.status = Status{LastRun: now, LastSuccess: now}
	r.lastErr = nil
	r.mu.Unlock()

	r.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshSuccess)
	r.logger.Info("session tokens refreshed",
		logging.Status(logging.StatusSuccess),
		logging.Token("access_token", pair.AccessToken))
	return true, nil
}

func (r *Refresher) fail(ctx context.Context, err error) {
	r.mu.Lock()
	r.status.LastRun = time.Now()
	r.status.LastError = err.Error()
	r.lastErr = err
	r.mu.Unlock()

	r.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshFailure)
	r.logger.Warn("token refresh failed, keeping stored tokens",
		logging.Status(logging.StatusError),
		logging.Err(err))
}

// Status returns the latest tick outcome.
func (r *Refresher) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// LastError returns the error of the latest tick, nil after a success.
func (r *Refresher) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}
