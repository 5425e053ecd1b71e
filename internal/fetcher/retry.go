package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// RetryPolicy retries a single fetch call on transient failures with
// exponential backoff clamped to [MinBackoff, MaxBackoff].
type RetryPolicy struct {
	MaxAttempts int
	Multiplier  time.Duration
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	Retryable   func(error) bool
	Clock       Clock
}

// DefaultRetryPolicy returns 3 attempts with backoff in [2s, 10s].
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Multiplier:  time.Second,
		MinBackoff:  2 * time.Second,
		MaxBackoff:  10 * time.Second,
		Retryable:   IsRetryable,
		Clock:       SystemClock{},
	}
}

// Backoff returns the wait before attempt n+1, where n >= 1 is the attempt
// that just failed: clamp(Multiplier * 2^(n-1), MinBackoff, MaxBackoff).
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = time.Second
	}
	d := mult
	for i := 1; i < n && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if d < p.MinBackoff {
		d = p.MinBackoff
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Do calls fn until it succeeds, fails with a non-retryable error, or
// MaxAttempts is reached. The last error is wrapped with ErrMaxRetries
// when attempts run out.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) (*types.Response, error)) (*types.Response, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	clock := p.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	var lastErr error
	for n := 1; n <= attempts; n++ {
		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) {
			return nil, err
		}
		if n == attempts {
			break
		}

		wait := p.Backoff(n)
		var fe *types.FetchError
		if errors.As(err, &fe) && fe.RetryAfter > wait {
			wait = fe.RetryAfter
		}
		if err := clock.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", types.ErrMaxRetries, attempts, lastErr)
}

// IsRetryable reports whether err is a transient failure: network errors,
// timeouts, 408, 429 and 5xx. Other HTTP statuses propagate immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var fe *types.FetchError
	if errors.As(err, &fe) {
		if fe.StatusCode != 0 {
			return isRetryableStatus(fe.StatusCode)
		}
		if fe.Retryable {
			return true
		}
		return isRetryableError(fe.Err)
	}
	return isRetryableError(err)
}

func isRetryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// isRetryableError checks if a network error warrants a retry.
// Covers timeouts, connection resets, unexpected EOF, and connection refused.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, types.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	// Any other dial/read failure is a connection error.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	return false
}
