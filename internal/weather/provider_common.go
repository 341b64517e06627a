package weather

import (
	"context"
	"time"

	"github.com/tphakala/agrisense/internal/errors"
)

const (
	RequestTimeout = 10 * time.Second
	UserAgent      = "agrisense https://github.com/tphakala/agrisense"
	RetryDelay     = 2 * time.Second
	MaxRetries     = 3
)

// newWeatherError creates a standardized weather error with common fields
func newWeatherError(err error, category errors.ErrorCategory, operation, provider string) error {
	return errors.New(err).
		Component("weather").
		Category(category).
		Context("operation", operation).
		Context("provider", provider).
		Build()
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
