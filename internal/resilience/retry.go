package resilience

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/clipforge/clipforge/internal/config"
)

// Retryer executes operations with exponential backoff and jitter.
type Retryer struct {
	cfg    config.RetryConfig
	logger *slog.Logger

	// jitter returns a multiplier applied to each computed delay.
	// Injectable for deterministic tests.
	jitter func() float64
}

// NewRetryer creates a Retryer from config.
func NewRetryer(cfg config.RetryConfig, logger *slog.Logger) *Retryer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retryer{
		cfg:    cfg,
		logger: logger,
		// Uniform in [0.5, 1.5) so synchronized clients spread out.
		jitter: func() float64 { return 0.5 + rand.Float64() },
	}
}

// Delay returns the backoff delay after the given zero-based attempt,
// before jitter: base * exponentialBase^attempt, capped at the max delay.
func (r *Retryer) Delay(attempt int) time.Duration {
	d := time.Duration(float64(r.cfg.BaseDelay) * math.Pow(r.cfg.ExponentialBase, float64(attempt)))
	if d > r.cfg.MaxDelay {
		d = r.cfg.MaxDelay
	}
	return d
}

// backoff returns the jittered delay before the next attempt. The jitter
// multiplier can push a capped delay past the configured ceiling, so the
// result is clamped to MaxDelay.
func (r *Retryer) backoff(attempt int) time.Duration {
	d := time.Duration(float64(r.Delay(attempt)) * r.jitter())
	if d > r.cfg.MaxDelay {
		d = r.cfg.MaxDelay
	}
	return d
}

// Do runs fn up to MaxAttempts times. A nil return stops immediately.
// Errors for which retryable reports false are returned without further
// attempts; a nil retryable treats every error as retryable. Between
// attempts Do sleeps for the jittered backoff delay, aborting early if ctx
// is cancelled.
func (r *Retryer) Do(ctx context.Context, operation string, fn func(context.Context) error, retryable func(error) bool) error {
	var lastErr error

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == r.cfg.MaxAttempts-1 {
			break
		}

		delay := r.backoff(attempt)
		r.logger.Warn("operation failed, retrying",
			slog.String("operation", operation),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", r.cfg.MaxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", lastErr.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	r.logger.Error("operation failed after all attempts",
		slog.String("operation", operation),
		slog.Int("attempts", r.cfg.MaxAttempts),
		slog.String("error", lastErr.Error()),
	)
	return lastErr
}
