package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/calebreed/parley/internal/chat"
)

// Policy controls retry behavior for completion requests.
type Policy struct {
	MaxAttempts int // total attempts including the first
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy is a reasonable setting for an interactive client.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

// Transport wraps an inner transport and repeats retryable failures with
// exponential backoff. The completion client itself never retries; this
// decorator is where that policy lives.
type Transport struct {
	inner  chat.Transport
	policy Policy
}

// NewTransport decorates inner with the given retry policy.
func NewTransport(inner chat.Transport, policy Policy) *Transport {
	return &Transport{inner: inner, policy: policy}
}

// Send forwards to the inner transport, retrying while the failure is
// retryable and attempts remain.
func (t *Transport) Send(ctx context.Context, body []byte) ([]byte, error) {
	attempts := t.policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			d := backoffWithJitter(t.policy.BaseDelay, attempt-1, t.policy.MaxDelay)
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		resp, err := t.inner.Send(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !Retryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("retries exhausted after %d attempts: %w", attempts, lastErr)
}

// Retryable reports whether a failure is worth repeating: network errors
// without a response, rate limiting, and server-side errors. Cancellation
// and client-side errors are not.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *chat.TransportError
	if !errors.As(err, &te) {
		return false
	}
	if te.StatusCode == 0 {
		return true
	}
	return te.StatusCode == http.StatusTooManyRequests || te.StatusCode >= 500
}

// backoffWithJitter computes exponential backoff with +/-20% jitter, capped at maxDelay.
func backoffWithJitter(base time.Duration, attempt int, maxDelay time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	if d > maxDelay {
		d = maxDelay
	}
	jitter := float64(d) * 0.2 * (2*rand.Float64() - 1) // range [-20%, +20%]
	d = time.Duration(float64(d) + jitter)
	if d < 0 {
		d = base
	}
	return d
}
