// Package retry wraps fallible remote calls in bounded exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts  = 4
	DefaultInitialDelay = time.Second
	DefaultFactor       = 2.0
)

// Policy describes how many times to attempt an operation and how long to
// wait in between. Zero fields take the defaults above; a negative
// InitialDelay retries immediately.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the policy used when nothing is configured.
func Default() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		Factor:       DefaultFactor,
	}
}

// Do runs op until it succeeds, the error is not retryable, or MaxAttempts
// is reached. The last error is returned wrapped.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	delay := p.InitialDelay
	switch {
	case delay == 0:
		delay = DefaultInitialDelay
	case delay < 0:
		delay = 0
	}
	factor := p.Factor
	if factor < 1 {
		factor = DefaultFactor
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = wait
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return fmt.Errorf("permanent failure on attempt %d: %w", attempt, err)
		}
		if attempt == attempts {
			break
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("retry wait after attempt %d: %w", attempt, sleepErr)
		}
		delay = time.Duration(float64(delay) * factor)
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}

func wait(ctx context.Context, d time.Duration) error {
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
