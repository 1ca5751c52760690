// Package retry runs collaborator calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/koscakluka/ema-tutor/internal/logging"
)

var logger = logging.NewLogger("github.com/koscakluka/ema-tutor/internal/retry")

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	// MaxAttempts counts the initial attempt, 1 disables retries.
	MaxAttempts     uint          `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Multiplier      float64       `yaml:"multiplier"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     4,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
	}
}

func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	return b
}

// HTTPStatusError is an unsuccessful response from a collaborator.
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether err is transient: timeouts, network glitches,
// rate limiting and gateway errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusRequestTimeout,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// Do calls op until it succeeds, fails with an error that is not retryable,
// or the policy runs out of attempts. The last error is returned as is.
func Do[T any](ctx context.Context, policy Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = 1
	}

	attempt := 0
	return backoff.Retry(ctx,
		func() (T, error) {
			attempt++
			v, err := op(ctx)
			if err != nil && !IsRetryable(err) {
				return v, backoff.Permanent(err)
			}
			return v, err
		},
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(policy.MaxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("retrying after transient failure",
				"operation", name,
				"attempt", attempt,
				"wait", wait,
				"error", err)
		}),
	)
}
