package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Policy controls exponential backoff between attempts.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      int
	Multiplier      float64
}

// APIPolicy is tuned for interactive REST calls: the user is waiting, so
// retries are quick and few.
func APIPolicy() Policy {
	return Policy{
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxRetries:      2,
		Multiplier:      2.0,
	}
}

// StreamPolicy covers the initial stream connection. The stream itself is
// never retried once open; a drop mid-exchange surfaces as a connection
// error instead.
func StreamPolicy() Policy {
	return Policy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxRetries:      1,
		Multiplier:      2.0,
	}
}

// IsRetryableError reports whether a transport error is worth another
// attempt. Context cancellation and definitive DNS misses are not.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsNotFound
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.EPIPE)
	}

	return false
}

// IsRetryableHTTPStatus reports whether a response status justifies retrying.
func IsRetryableHTTPStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// Do runs fn with backoff until it succeeds, returns a non-retryable
// failure, the retry budget is spent, or ctx is done. fn reports the HTTP
// status of the attempt (0 when the request never got a response).
func Do(ctx context.Context, p Policy, fn func() (int, error)) error {
	var lastErr error
	var lastStatus int
	interval := p.InitialInterval

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		statusCode, err := fn()
		lastStatus = statusCode
		lastErr = err

		if err == nil && statusCode >= 200 && statusCode < 300 {
			return nil
		}

		retryable := false
		if err != nil {
			retryable = IsRetryableError(err)
		} else if statusCode > 0 {
			retryable = IsRetryableHTTPStatus(statusCode)
		}

		if !retryable {
			if err != nil {
				return fmt.Errorf("non-retryable error on attempt %d (status %d): %w", attempt+1, statusCode, err)
			}
			return fmt.Errorf("non-retryable status code %d on attempt %d", statusCode, attempt+1)
		}

		if attempt == p.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		interval = time.Duration(float64(interval) * p.Multiplier)
		if interval > p.MaxInterval {
			interval = p.MaxInterval
		}
	}

	if lastErr != nil {
		return fmt.Errorf("max retries (%d) exceeded (status %d): %w", p.MaxRetries, lastStatus, lastErr)
	}
	return fmt.Errorf("max retries (%d) exceeded with status code %d", p.MaxRetries, lastStatus)
}
