package embed

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	ierrors "github.com/indexchat/indexchat/internal/errors"
)

// RetryConfig configures warm-up retry behavior.
type RetryConfig struct {
	MaxRetries int           // Retry attempts, not counting the initial attempt
	MaxWait    time.Duration // Cap on a single advertised cooldown
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: DefaultMaxRetries,
		MaxWait:    MaxWarmupWait,
	}
}

// withWarmupRetry executes fn, retrying only the "model warming up"
// transient condition. The wait between attempts comes from the
// provider-advertised cooldown carried on the error (see warmupWait),
// capped at cfg.MaxWait. All other failures surface immediately; the
// pipeline does not retry rate limits or network faults itself.
func withWarmupRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var ie *ierrors.IndexError
		if !stderrors.As(err, &ie) || ie.Code != ierrors.ErrCodeProviderWarmup {
			return err
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		wait := warmupWait(ie)
		if wait <= 0 {
			wait = DefaultWarmupWait
		}
		if wait > cfg.MaxWait {
			wait = cfg.MaxWait
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("model still warming up after %d retries: %w", cfg.MaxRetries, lastErr)
}

// warmupWait extracts the provider-advertised cooldown from a
// warm-up error's details. Returns 0 if absent or malformed.
func warmupWait(ie *ierrors.IndexError) time.Duration {
	raw, ok := ie.Details["estimated_time"]
	if !ok {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
