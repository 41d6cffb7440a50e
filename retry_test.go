package main

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func recordingPolicy(base time.Duration, waits *[]time.Duration) retryPolicy {
	return retryPolicy{
		Base: base,
		sleep: func(_ context.Context, d time.Duration) error {
			*waits = append(*waits, d)
			return nil
		},
	}
}

func TestWithRetryGivesUpAfterThreeAttempts(t *testing.T) {
	logger := NewTestLogger(t)
	logger.Debug("=== Testing retry exhaustion ===")

	var waits []time.Duration
	calls := 0
	err := withRetry(context.Background(), recordingPolicy(time.Second, &waits), "vote", func(context.Context) error {
		calls++
		return &RequestFailure{Op: "vote", Err: errors.New("timeout")}
	})
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if !slices.Equal(waits, []time.Duration{time.Second, 2 * time.Second}) {
		logger.LogDB("FAIL: unexpected retry delays")
		t.Errorf("delays = %v, want [1s 2s]", waits)
	}
	var rf *RequestFailure
	if !errors.As(err, &rf) {
		t.Errorf("final error should wrap the last RequestFailure, got %v", err)
	}
}

func TestWithRetrySucceedsAfterFailure(t *testing.T) {
	var waits []time.Duration
	calls := 0
	err := withRetry(context.Background(), recordingPolicy(50*time.Millisecond, &waits), "speech", func(context.Context) error {
		calls++
		if calls < 2 {
			return &RequestFailure{Op: "speech", Err: errors.New("bad json")}
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
	if !slices.Equal(waits, []time.Duration{50 * time.Millisecond}) {
		t.Errorf("delays = %v", waits)
	}
}

func TestWithRetryDoesNotRetryOtherErrors(t *testing.T) {
	var waits []time.Duration
	calls := 0
	fatal := errors.New("invalid state")
	err := withRetry(context.Background(), recordingPolicy(time.Second, &waits), "kill", func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) || calls != 1 || len(waits) != 0 {
		t.Errorf("err=%v calls=%d waits=%v", err, calls, waits)
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, retryPolicy{Base: time.Hour}, "vote", func(context.Context) error {
		calls++
		cancel()
		return &RequestFailure{Op: "vote", Err: errors.New("timeout")}
	})
	if calls != 1 {
		t.Errorf("expected a single attempt after cancel, got %d", calls)
	}
	if err == nil {
		t.Error("expected an error")
	}
}

func TestWithRetryStopsWhenWaitFails(t *testing.T) {
	calls := 0
	policy := retryPolicy{
		Base:  time.Second,
		sleep: func(context.Context, time.Duration) error { return context.Canceled },
	}
	err := withRetry(context.Background(), policy, "vote", func(context.Context) error {
		calls++
		return &RequestFailure{Op: "vote", Err: errors.New("timeout")}
	})
	if calls != 1 {
		t.Errorf("expected no retry after a failed wait, got %d attempts", calls)
	}
	var rf *RequestFailure
	if !errors.As(err, &rf) {
		t.Errorf("expected the RequestFailure back, got %v", err)
	}
}
