// Package retry is the caller-side retry policy for store-backed operations.
// Transient store failures are retried with bounded exponential backoff, a
// lost compare-and-set is retried once immediately, and everything else is
// returned as-is. No lock is held while waiting.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     1 * time.Second,
		MaxElapsedTime:  5 * time.Second,
		MaxRetries:      5,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsedTime
	var bo backoff.BackOff = b
	if p.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, p.MaxRetries)
	}
	return backoff.WithContext(bo, ctx)
}

// Do runs op under the policy. When transient retries are exhausted the last
// transient error is returned, so the request fails as a whole.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, name string, op func(ctx context.Context) (T, error)) (T, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var result T
	attempt := func() error {
		v, err := op(ctx)
		if domain.IsKind(err, domain.KindConflict) {
			logger.DebugContext(ctx, "retrying after conflict", slog.String("op", name))
			v, err = op(ctx)
		}
		if err == nil {
			result = v
			return nil
		}
		if domain.IsKind(err, domain.KindTransientStore) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		logger.WarnContext(ctx, "transient store failure, backing off",
			slog.String("op", name),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
	}

	if err := backoff.RetryNotify(attempt, p.backOff(ctx), notify); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
