// Package retry runs chain reads and writes under a bounded attempt budget.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = time.Second
)

// Policy is a constant-delay retry policy.
type Policy struct {
	MaxAttempts int           // total attempts, including the first one
	Delay       time.Duration // wait between attempts
	IsRetryable func(error) bool
}

func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
		IsRetryable: Retryable,
	}
}

// FromConfig reads the attempt budget from the loaded config.
func FromConfig(c *cmn.SConfig) Policy {
	p := Default()
	if c.RetryAttempts > 0 {
		p.MaxAttempts = c.RetryAttempts
	}
	if c.RetryDelay >= 0 {
		p.Delay = c.RetryDelay
	}
	return p
}

// Retryable refuses user rejections, deterministic failures and writes the
// node may already hold.
func Retryable(err error) bool {
	if errors.Is(err, cmn.ErrSubmissionUnknown) {
		return false
	}
	switch cmn.ClassOf(err) {
	case cmn.ClassUserRejected, cmn.ClassValidation, cmn.ClassContractState:
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Run calls op until it succeeds, fails with a non-retryable error, the
// attempt budget is spent or ctx is done. The success value is returned as is.
func Run[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.IsRetryable == nil {
		p.IsRetryable = Retryable
	}

	attempts := 0
	var lastErr error

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(p.MaxAttempts-1)),
		ctx)

	result, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempts++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		metrics.RetryAttempts.WithLabelValues(cmn.ClassOf(err).String()).Inc()
		if !p.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, b, func(err error, wait time.Duration) {
		log.Debug().Err(err).Int("attempt", attempts).Dur("wait", wait).Msg("retry: attempt failed")
	})

	if err == nil {
		return result, nil
	}

	if lastErr != nil && !p.IsRetryable(lastErr) {
		return result, lastErr
	}

	if ctxErr := ctx.Err(); ctxErr != nil && attempts < p.MaxAttempts {
		return result, ctxErr
	}

	metrics.RetryExhausted.Inc()
	return result, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// Do is Run for operations without a result.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Run(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
