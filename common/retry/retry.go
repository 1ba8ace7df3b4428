// Package retry retries transient failures of outbound HTTP calls with
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Policy controls how many times and how patiently a call is retried.
type Policy struct {
	// Attempts is the total number of calls, including the first. Values
	// below 1 mean a single call.
	Attempts int
	// Backoff is the wait before the second call. It doubles each time up to
	// MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// Default suits short request/response calls to chat and AI backends.
var Default = Policy{
	Attempts:   3,
	Backoff:    500 * time.Millisecond,
	MaxBackoff: 5 * time.Second,
}

// permanentError marks an error that must not be retried.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so that Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryableStatus reports whether an HTTP status code is worth another try:
// rate limiting and server-side errors.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// Do calls fn until it succeeds, returns a Permanent error, the policy is
// exhausted, or ctx is done. The returned error is the last one from fn with
// any Permanent wrapper removed.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Backoff <= 0 {
		p.Backoff = Default.Backoff
	}
	if p.MaxBackoff < p.Backoff {
		p.MaxBackoff = p.Backoff
	}

	var (
		zero  T
		delay = p.Backoff
	)
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if attempt >= p.Attempts {
			return zero, err
		}

		slog.Debug("retrying after transient failure", "attempt", attempt, "max", p.Attempts, "delay", delay, "err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, errors.Join(err, ctx.Err())
		case <-timer.C:
		}

		delay *= 2
		if delay > p.MaxBackoff {
			delay = p.MaxBackoff
		}
	}
}
