package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds an exponential retry schedule. The wait before retry n
// (counting from zero) is min(InitialDelay * Multiplier^n, MaxDelay).
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Notify is called before every wait with the error that caused it
type Notify func(err error, attempt int, wait time.Duration)

// NewBackOff returns the policy's schedule without jitter and without an
// elapsed time limit; callers bound it by attempts.
func (p Policy) NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Delay returns the wait that precedes retry n
func (p Policy) Delay(n int) time.Duration {
	b := p.NewBackOff()
	d := b.NextBackOff()
	for i := 0; i < n; i++ {
		d = b.NextBackOff()
	}
	return d
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

type temporary interface {
	Temporary() bool
}

// IsPermanent reports whether err asks not to be retried, either explicitly
// or by exposing Temporary() == false.
func IsPermanent(err error) bool {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return true
	}
	var t temporary
	if errors.As(err, &t) {
		return !t.Temporary()
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Do runs op until it succeeds, returns a permanent error, or the policy runs
// out of attempts, in which case the last error is returned. Waits are aborted
// when ctx is done.
func Do(ctx context.Context, p Policy, op func() error, notify Notify) error {
	_, err := Value(ctx, p, func() (struct{}, error) {
		return struct{}{}, op()
	}, notify)
	return err
}

// Value is Do for operations that produce a result
func Value[T any](ctx context.Context, p Policy, op func() (T, error), notify Notify) (T, error) {
	b := backoff.WithContext(backoff.WithMaxRetries(p.NewBackOff(), uint64(p.attempts()-1)), ctx)

	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		v, err := op()
		if err != nil && IsPermanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(err, attempt, wait)
		}
	}

	return backoff.RetryNotifyWithData(wrapped, b, onRetry)
}
