package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/veritract/docpipe/internal/domain"
)

// RetryWithBackoff retries an operation with exponential backoff, but only
// while the failure is classified retriable: provider 5xx/429/408 and
// network-level errors qualify, everything else returns immediately. The
// sleep doubles each attempt and is context-aware.
func RetryWithBackoff(ctx context.Context, logger *zap.Logger, op func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = op()
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}

		if !domain.IsRetriable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		logger.Debug("retriable failure, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	return lastErr
}
