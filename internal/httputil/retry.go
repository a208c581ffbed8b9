// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the fetch and retry helpers shared by the crawl stage.
package httputil

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

const defaultMaxAttempts = 3

// Policy decides how often and on which errors an operation is retried.
// The zero value makes three attempts without pausing and retries only
// transient network errors.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Backoff is the pause before each retry.
	Backoff time.Duration

	// Retryable reports whether err is worth another attempt. Nil means IsTransient.
	Retryable func(err error) bool

	// OnRetry is called before each pause with the attempt that just failed (1-based).
	OnRetry func(attempt int, err error)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. It returns the number of attempts made and the
// last error. A cancelled context during a pause returns ctx.Err().
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil || !retryable(err) || attempt >= maxAttempts {
			return attempt, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if p.Backoff > 0 {
			select {
			case <-ctx.Done():
				return attempt, ctx.Err()
			case <-time.After(p.Backoff):
			}
		}
	}
}

// IsTransient reports whether err is a network failure that may succeed on
// another attempt: timeouts, refused or reset connections, and responses cut
// off mid-stream. HTTP status errors are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}
