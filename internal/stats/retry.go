package stats

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 200 * time.Millisecond
)

// retryingProvider wraps a Provider with retry/backoff behavior. Backoff
// waits are context-aware and driven by the injected clock so tests can
// advance them instantly.
type retryingProvider struct {
	inner       Provider
	logger      *log.Logger
	clock       quartz.Clock
	maxAttempts int
	backoff     time.Duration
}

// NewRetryingProvider wraps the given provider with retries. Non-positive
// maxAttempts/backoff fall back to defaults.
func NewRetryingProvider(inner Provider, logger *log.Logger, clock quartz.Clock, maxAttempts int, backoff time.Duration) Provider {
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryAttempts
	}
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &retryingProvider{
		inner:       inner,
		logger:      logger.WithPrefix("stats-retry"),
		clock:       clock,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

func (r *retryingProvider) FetchRosterBasic(ctx context.Context) ([]Player, error) {
	var players []Player
	err := r.retry(ctx, "roster", func() error {
		var err error
		players, err = r.inner.FetchRosterBasic(ctx)
		return err
	})
	return players, err
}

func (r *retryingProvider) FetchGameStatsByDate(ctx context.Context, date string) ([]StatRecord, error) {
	var records []StatRecord
	err := r.retry(ctx, "stats", func() error {
		var err error
		records, err = r.inner.FetchGameStatsByDate(ctx, date)
		return err
	})
	return records, err
}

func (r *retryingProvider) retry(ctx context.Context, op string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == r.maxAttempts {
			break
		}

		r.logger.Warn("Upstream fetch retry", "op", op, "attempt", attempt, "maxAttempts", r.maxAttempts, "error", lastErr)

		// Linear backoff, abandoned as soon as the context is done.
		timer := r.clock.NewTimer(time.Duration(attempt) * r.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	r.logger.Warn("Upstream fetch failed", "op", op, "attempts", r.maxAttempts, "error", lastErr)
	return lastErr
}
