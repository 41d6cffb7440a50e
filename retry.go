package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sethvargo/go-retry"
)

const maxAttempts = 3

// RequestFailure is a transient failure of an external reasoning call (network, provider or
// unparseable output). Only these are retried.
type RequestFailure struct {
	Op  string
	Err error
}

func (e *RequestFailure) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Op, e.Err)
}

func (e *RequestFailure) Unwrap() error {
	return e.Err
}

// retryPolicy waits attempt*Base between attempts. sleep replaces the timer in tests.
type retryPolicy struct {
	Base  time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// backoff yields attempt*Base for at most maxAttempts-1 retries.
func (p retryPolicy) backoff(ctx context.Context, op string) retry.Backoff {
	var attempt int
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		reasonerRetries.WithLabelValues(op).Inc()
		d := time.Duration(attempt) * p.Base
		if p.sleep == nil {
			return d, false
		}
		if err := p.sleep(ctx, d); err != nil {
			return 0, true
		}
		return 0, false
	})
	return retry.WithMaxRetries(maxAttempts-1, linear)
}

// withRetry runs fn up to maxAttempts times while it fails with a *RequestFailure.
func withRetry(ctx context.Context, p retryPolicy, op string, fn func(context.Context) error) error {
	attempts := 0
	err := retry.Do(ctx, p.backoff(ctx, op), func(ctx context.Context) error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var rf *RequestFailure
		if !errors.As(err, &rf) || ctx.Err() != nil {
			return err
		}
		log.Printf("Retry: %s attempt %d/%d failed: %v", op, attempts, maxAttempts, err)
		return retry.RetryableError(err)
	})
	var rf *RequestFailure
	if attempts == maxAttempts && errors.As(err, &rf) {
		return fmt.Errorf("%s: all %d attempts failed: %w", op, maxAttempts, err)
	}
	return err
}
