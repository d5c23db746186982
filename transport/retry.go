package transport

import (
	"context"
	"time"

	"scouter/pkg/logger"
)

// DefaultMaxRetries is the shared default across every transport's
// publish-layer retry.
const DefaultMaxRetries = 3

// Retrier runs an operation with exponential backoff, the same shape as
// the grpc_retry.BackoffExponential wiring GRPCProducer dials with, made
// transport-agnostic so HTTP, Kafka, RabbitMQ, and Redis producers can
// share one retry policy.
type Retrier struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// NewRetrier returns the default policy: 3 retries, 200ms base delay
// doubling up to 10s.
func NewRetrier() Retrier {
	return Retrier{MaxRetries: DefaultMaxRetries, BaseDelay: 200 * time.Millisecond, MaxDelay: 10 * time.Second}
}

func (r Retrier) normalized() Retrier {
	if r.MaxRetries <= 0 {
		r.MaxRetries = DefaultMaxRetries
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = 200 * time.Millisecond
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = 10 * time.Second
	}
	return r
}

// Do runs fn, retrying on error up to MaxRetries additional times with
// exponential backoff between attempts. It returns fn's last error if
// every attempt fails, or nil on the first success.
func (r Retrier) Do(ctx context.Context, transportName string, fn func() error) error {
	r = r.normalized()

	var lastErr error
	delay := r.BaseDelay
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == r.MaxRetries {
			break
		}
		logger.Warn("transport: send attempt failed, retrying",
			"transport", transportName, "attempt", attempt+1, "error", lastErr)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > r.MaxDelay {
			delay = r.MaxDelay
		}
	}
	return lastErr
}
