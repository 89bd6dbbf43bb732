package retrylimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type httpErr int

func (e httpErr) Error() string   { return "http error" }
func (e httpErr) StatusCode() int { return int(e) }

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, nil, fastConfig(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_StopsOnFatal(t *testing.T) {
	sentinel := errors.New("no such thing")
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		return &FatalError{Err: sentinel}
	}, nil, fastConfig(5))
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want wrapped sentinel", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	last := errors.New("still broken")
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		return last
	}, nil, fastConfig(3))
	if !errors.Is(err, last) {
		t.Fatalf("err = %v, want last error wrapped", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithRetryConfig(ctx, func() error { return nil }, nil, fastConfig(3))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestAdaptiveLimiter_BacksOffOnThrottle(t *testing.T) {
	lim := NewAdaptiveLimiter(4, 1, 8, 1, 0.5)
	_ = WithRetryConfig(context.Background(), func() error {
		return httpErr(429)
	}, lim, fastConfig(1))
	if got := lim.CurrentLimit(); got != 2 {
		t.Fatalf("limit = %v, want 2", got)
	}

	lim.RateLimited()
	lim.RateLimited()
	if got := lim.CurrentLimit(); got != 1 {
		t.Fatalf("limit = %v, want floor of 1", got)
	}
}
