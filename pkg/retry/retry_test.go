package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "/jobs/1", Policy{Retries: 3, Delay: time.Millisecond}, func(error) bool { return true }, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	calls := 0
	var events []Event
	policy := Policy{
		Retries: 2,
		Delay:   time.Millisecond,
		OnRetry: func(ev Event) { events = append(events, ev) },
	}

	err := Do(context.Background(), "/jobs/1", policy, func(error) bool { return true }, func() error {
		calls++
		if calls < 3 {
			return errors.New("HTTP 503")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 retry events, got %d", len(events))
	}
	if events[0].Attempt != 1 || events[1].Attempt != 2 {
		t.Errorf("unexpected attempt numbers: %+v", events)
	}
	if events[0].MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", events[0].MaxAttempts)
	}
}

func TestDoExhaustsRetryBudget(t *testing.T) {
	calls := 0
	failure := errors.New("HTTP 500")
	err := Do(context.Background(), "/jobs/1", Policy{Retries: 1, Delay: time.Millisecond}, func(error) bool { return true }, func() error {
		calls++
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected the last failure, got %v", err)
	}
	// One retry means exactly two invocations.
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDoDoesNotRetryPermanentFailures(t *testing.T) {
	calls := 0
	observed := 0
	policy := Policy{Retries: 3, Delay: time.Millisecond, OnRetry: func(Event) { observed++ }}
	err := Do(context.Background(), "/jobs/1", policy, func(error) bool { return false }, func() error {
		calls++
		return errors.New("HTTP 404")
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if observed != 0 {
		t.Errorf("observer must not fire for permanent failures, fired %d times", observed)
	}
}

func TestDoLinearBackoffDelays(t *testing.T) {
	var delays []time.Duration
	policy := Policy{
		Retries: 3,
		Delay:   200 * time.Millisecond,
		OnRetry: func(ev Event) { delays = append(delays, ev.NextDelay) },
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		// Let the first two backoffs be scheduled, then abort the test early.
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_ = Do(ctx, "/jobs/1", policy, func(error) bool { return true }, func() error {
		calls++
		return errors.New("HTTP 502")
	})

	if len(delays) == 0 {
		t.Fatal("expected at least one retry event")
	}
	if delays[0] != 200*time.Millisecond {
		t.Errorf("first backoff should be delay*1, got %v", delays[0])
	}
}

func TestDoEnforcesDelayFloor(t *testing.T) {
	var got time.Duration
	policy := Policy{
		Retries: 1,
		Delay:   time.Millisecond, // below the floor
		OnRetry: func(ev Event) { got = ev.NextDelay },
	}
	_ = Do(context.Background(), "/jobs/1", policy, func(error) bool { return true }, func() error {
		return errors.New("HTTP 503")
	})
	if got != MinDelay {
		t.Errorf("expected floor %v, got %v", MinDelay, got)
	}
}

func TestDoCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := Policy{
		Retries: 5,
		Delay:   time.Second,
		OnRetry: func(Event) { cancel() },
	}
	err := Do(ctx, "/jobs/1", policy, func(error) bool { return true }, func() error {
		calls++
		return errors.New("HTTP 503")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("cancellation during backoff must stop further attempts, got %d calls", calls)
	}
}

func TestDoNegativeRetriesMeansSingleAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "/jobs/1", Policy{Retries: -1, Delay: time.Millisecond}, func(error) bool { return true }, func() error {
		calls++
		return errors.New("HTTP 500")
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
