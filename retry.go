package main

import (
	"context"
	"time"
)

type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry calls op until it succeeds or policy.MaxAttempts calls have failed,
// sleeping policy.Delay between failures but not after the last one. It
// returns the error of the last call. A cancelled context stops the waiting
// and returns the last error seen.
func Retry(ctx context.Context, policy RetryPolicy, sleep sleepFunc, op func(attempt int) error) error {
	attempts := max(policy.MaxAttempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(attempt)
		if err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if sleepErr := sleep(ctx, policy.Delay); sleepErr != nil {
			return err
		}
	}
	return err
}
