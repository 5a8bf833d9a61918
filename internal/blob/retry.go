package blob

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 100 * time.Millisecond
)

// withBackoff runs op, retrying transient failures with an exponentially
// doubling delay (100ms, 200ms, 400ms). Non-retryable failures, including
// context cancellation, propagate on first occurrence. After maxRetries
// the last observed error propagates.
func withBackoff(ctx context.Context, maxRetries int, baseDelay time.Duration, op func(context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt >= maxRetries || !retryable(lastErr) {
			return lastErr
		}
		delay := baseDelay << attempt
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// retryable classifies an error as transient: network timeout, connection
// reset/refused, rate limiting, or a 5xx-class backend response.
// Cancellation is never retryable.
func retryable(err error) bool {
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
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.StatusCode == 429 || resp.StatusCode >= 500
	}
	return false
}
