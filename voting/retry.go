package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/courtside/livevote/database"
	"github.com/courtside/livevote/models"
	"github.com/sirupsen/logrus"
)

// RetryPolicy bounds how store calls are retried.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        5,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

func (p RetryPolicy) resolve() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxTries == 0 {
		p.MaxTries = def.MaxTries
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = def.MaxInterval
	}
	return p
}

// withRetry runs op until it succeeds, fails permanently or the policy is
// exhausted. Exhaustion is reported as models.ErrStoreUnavailable wrapping
// the last failure.
func withRetry[T any](ctx context.Context, policy RetryPolicy, log *logrus.Entry, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval

	res, err := backoff.Retry(ctx, func() (T, error) {
		res, err := op()
		if err != nil && isPermanent(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(policy.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.WithFields(logrus.Fields{"error": err, "backoff": next}).Debug("retrying store call")
		}),
	)
	if err == nil {
		return res, nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	if isPermanent(err) {
		return res, err
	}
	return res, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
}

func isPermanent(err error) bool {
	return models.IsValidation(err) ||
		errors.Is(err, database.ErrUnchanged) ||
		errors.Is(err, context.Canceled)
}
