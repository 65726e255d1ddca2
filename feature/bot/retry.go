package bot

import (
	"context"
	"time"

	"bag-sniper/feature/market"

	"go.uber.org/zap"
)

// withRetry runs fn up to cfg.RetryAttempts times with a fixed backoff,
// retrying only errors market.IsRetryable classifies as transient. The last
// error is returned as-is; business errors pass through on first sight.
func withRetry[T any](ctx context.Context, logger *zap.Logger, cfg Config, fn func() (T, error)) (T, error) {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var result T
	var err error
	for attempt := 1; ; attempt++ {
		result, err = fn()
		if err == nil || attempt >= attempts || !market.IsRetryable(err) {
			return result, err
		}
		logger.Debug("Retrying after transient error",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err))

		timer := time.NewTimer(cfg.RetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}
}
