package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"

	"fuelstation/internal/domain/reconciliation"
	"fuelstation/pkg/logger"
)

// obtainer is the part of *redislock.Client the locker uses.
type obtainer interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// ReconciliationLocker serializes reconciliation of a tank-day across processes.
// It sits in front of the database advisory lock, which remains the guarantee.
type ReconciliationLocker struct {
	client obtainer
	ttl    time.Duration
	wait   time.Duration
}

// NewReconciliationLocker creates a locker. ttl should exceed the reconciliation timeout.
func NewReconciliationLocker(client *redislock.Client, ttl time.Duration) *ReconciliationLocker {
	return newReconciliationLocker(client, ttl)
}

func newReconciliationLocker(client obtainer, ttl time.Duration) *ReconciliationLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ReconciliationLocker{client: client, ttl: ttl, wait: 2 * time.Second}
}

var _ reconciliation.Locker = (*ReconciliationLocker)(nil)

// Obtain takes "lock:<key>", retrying briefly. The release func is always safe to call.
func (l *ReconciliationLocker) Obtain(ctx context.Context, key string) (func(), error) {
	noop := func() {}
	retries := int(l.wait / (100 * time.Millisecond))
	lock, err := l.client.Obtain(ctx, "lock:"+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return noop, fmt.Errorf("lock %s held elsewhere: %w", key, err)
	}
	if err != nil {
		return noop, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		// Background context so the release happens even when ctx is cancelled.
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn(ctx, "redis lock release failed", "key", key, "error", err)
		}
	}, nil
}
