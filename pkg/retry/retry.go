package retry

import (
	"context"
	"fmt"
	"time"

	"dvidsharvest/pkg/logger"
)

// DefaultMaxAttempts is the total number of attempts, first try included
const DefaultMaxAttempts = 3

// Operation is a function that performs an operation that might need retrying
type Operation func(attempt int) error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func(attempt int) (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of attempts (values below 1 mean 1)
	MaxAttempts int
	// Backoff decides the pause between attempts
	Backoff BackoffStrategy
	// Logger for retry attempts
	Logger logger.Logger
	// Fields are attached to every retry log line
	Fields map[string]interface{}
}

// DefaultConfig returns three attempts with no pause between them
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     NoBackoff{},
		Logger:      logger.GetLogger(),
	}
}

// Do runs op until it succeeds or MaxAttempts is reached. Every error is
// retried; only context cancellation ends the loop early. The returned error
// wraps the last failure.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = NoBackoff{}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry cancelled after %d attempts: %w", attempt-1, lastErr)
			}
			return err
		}

		err := op(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		if cfg.Logger != nil {
			fields := map[string]interface{}{
				"attempt":      attempt,
				"max_attempts": maxAttempts,
				"error":        err.Error(),
			}
			for k, v := range cfg.Fields {
				fields[k] = v
			}
			cfg.Logger.WarnWithFields("attempt failed, retrying", fields)
		}

		if err := Wait(ctx, backoff.NextDelay(attempt)); err != nil {
			return fmt.Errorf("retry cancelled: %w", lastErr)
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", maxAttempts, lastErr)
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(ctx, func(attempt int) error {
		var opErr error
		result, opErr = op(attempt)
		return opErr
	}, cfg)

	return result, err
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
