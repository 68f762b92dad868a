// Package retry provides the bounded retry policy applied at every network
// boundary: a fixed attempt budget with exponential backoff, retrying only
// failures marked transient. Validation and permanent dependency errors pass
// through untouched on the first attempt.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"docrag/internal/domain"
)

// Policy is an explicit, parameterized retry policy. The zero value is not
// usable; construct with DefaultPolicy or from configuration.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy matches the deployment defaults: 3 attempts, exponential
// backoff starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Do runs op, retrying while it returns a transient error and the attempt
// budget lasts. The last error is returned unwrapped so its dependency tag
// survives for classification. Backoff sleeps respect ctx cancellation.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !domain.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(wrapped, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx))

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
