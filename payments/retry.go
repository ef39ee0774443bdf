package payments

import (
	"context"
	"errors"
	"time"

	"github.com/vocdoni/saas-billing/db"
	"go.vocdoni.io/dvote/log"
)

// RetryPolicy bounds the retries of a store operation. After the first
// attempt the operation is repeated at most Retries times, waiting Delay
// before the first retry and doubling the wait after each one.
type RetryPolicy struct {
	Retries int
	Delay   time.Duration
	// Transient reports whether a failure may go away on its own. Any other
	// error is returned at once.
	Transient func(error) bool
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries store connectivity failures three times,
// waiting 1s, 2s and 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:   3,
		Delay:     time.Second,
		Transient: db.IsTransient,
	}
}

// withDefaults returns DefaultRetryPolicy for an unset policy. A policy
// with any value set only gets the db.IsTransient classifier when it has
// none.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Retries == 0 && p.Delay == 0 && p.Transient == nil && p.Sleep == nil {
		return DefaultRetryPolicy()
	}
	if p.Transient == nil {
		p.Transient = db.IsTransient
	}
	return p
}

// Retry runs op and repeats it while it fails with a transient error and
// the policy has retries left. The error of the last attempt is returned
// unchanged. If ctx is done while waiting, the last error is returned joined
// with the context error.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	transient := policy.Transient
	if transient == nil {
		transient = db.IsTransient
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	delay := policy.Delay
	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		retriesLeft := policy.Retries - attempt + 1
		if retriesLeft <= 0 || !transient(err) {
			return result, err
		}
		log.Infow("store unreachable, retrying operation",
			"attempt", attempt, "retriesLeft", retriesLeft, "delay", delay.String(), "error", err.Error())
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return result, errors.Join(err, sleepErr)
		}
		delay *= 2
	}
}

// retryErr is Retry for operations without a result.
func retryErr(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	_, err := Retry(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
