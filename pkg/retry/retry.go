package retry

import (
	"context"
	"time"
)

// MinDelay is the floor enforced on the configured base delay.
const MinDelay = 100 * time.Millisecond

// Event describes one retry decision. It is reported to the observer
// before the backoff sleep and never influences control flow.
type Event struct {
	Path        string
	Attempt     int
	MaxAttempts int
	NextDelay   time.Duration
	Reason      string
}

// Policy holds retry configuration for one operation.
type Policy struct {
	Retries int           // additional attempts after the first
	Delay   time.Duration // base delay; backoff is Delay * attempt
	OnRetry func(Event)   // optional observer, must not block
}

// Do runs fn up to policy.Retries+1 times. A failed attempt is retried only
// when retryable reports the error as transient. Backoff is linear: the wait
// before attempt n+1 is Delay*n. Cancelling ctx aborts a pending sleep and
// returns ctx.Err() wrapped by nothing so callers can classify it.
func Do(ctx context.Context, path string, policy Policy, retryable func(error) bool, fn func() error) error {
	retries := policy.Retries
	if retries < 0 {
		retries = 0
	}
	delay := policy.Delay
	if delay < MinDelay {
		delay = MinDelay
	}

	attempt := 0
	for {
		attempt++

		err := fn()
		if err == nil {
			return nil
		}

		if attempt > retries || !retryable(err) {
			return err
		}

		nextDelay := delay * time.Duration(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(Event{
				Path:        path,
				Attempt:     attempt,
				MaxAttempts: retries + 1,
				NextDelay:   nextDelay,
				Reason:      err.Error(),
			})
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(nextDelay):
		}
	}
}
