// Package retry provides a bounded retry wrapper with exponential backoff for network-class operations
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultAttempts is the fixed attempt budget for downloads and remote install steps.
const DefaultAttempts = 3

var (
	// ErrAbort should be joined into an error on which retrying makes no sense
	ErrAbort = errors.New("retrying aborted")

	// Default is the policy used for every network-class operation
	Default = Policy{Attempts: DefaultAttempts, BaseDelay: time.Second, Multiplier: 2}
)

// Policy describes how many times an operation runs and how long to wait between runs.
// The first attempt has no prior delay; the delay before attempt n+1 is
// BaseDelay * Multiplier^(n-1), so every delay is strictly greater than the previous one.
type Policy struct {
	Attempts   int
	BaseDelay  time.Duration
	Multiplier float64

	// Sleep waits between attempts. Nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Abort marks err as permanent so Do returns it without further attempts.
func Abort(err error) error {
	return errors.Join(ErrAbort, err)
}

// Delay returns the wait before attempt n+1, for n >= 1.
func (p Policy) Delay(n int) time.Duration {
	mult := p.Multiplier
	if mult <= 1 {
		mult = 2
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	d := float64(base)
	for i := 1; i < n; i++ {
		d *= mult
	}
	return time.Duration(d)
}

func (p Policy) attempts() int {
	if p.Attempts <= 0 {
		return DefaultAttempts
	}
	return p.Attempts
}

// Do runs f until it succeeds, returns an error joined with ErrAbort, the context is
// cancelled, or the attempt budget is spent. f receives the 1-based attempt number.
func (p Policy) Do(ctx context.Context, f func(ctx context.Context, attempt int) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	times := p.attempts()
	var lastErr error
	for attempt := 1; attempt <= times; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.Delay(attempt-1)); err != nil {
				return errors.Join(err, lastErr)
			}
		}
		if err := ctx.Err(); err != nil {
			return errors.Join(err, lastErr)
		}

		lastErr = f(ctx, attempt)
		if lastErr == nil || errors.Is(lastErr, ErrAbort) {
			return lastErr
		}
	}
	return fmt.Errorf("retry limit exceeded after %d attempts: %w", times, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
