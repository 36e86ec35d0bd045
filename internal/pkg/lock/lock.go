// Package lock provides the mutual exclusion used around payroll period
// operations, backed by Redis when available and by process memory
// otherwise.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var ErrNotObtained = errors.New("lock not obtained")

type Lock interface {
	Release(ctx context.Context) error
}

type Locker interface {
	// Obtain returns ErrNotObtained when another holder owns key.
	Obtain(ctx context.Context, key string) (Lock, error)
}

// RedisLocker holds keys in Redis and refreshes them at half the TTL
// until released.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	opts   *redislock.Options
}

func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		opts: &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 3),
		},
	}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	lk, err := l.client.Obtain(ctx, key, l.ttl, l.opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotObtained)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	refreshCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	held := &redisLock{lock: lk, key: key, cancel: cancel, done: make(chan struct{})}
	go held.keepAlive(refreshCtx, l.ttl)
	return held, nil
}

type redisLock struct {
	lock   *redislock.Lock
	key    string
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *redisLock) keepAlive(ctx context.Context, ttl time.Duration) {
	defer close(h.done)
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.lock.Refresh(ctx, ttl, nil); err != nil {
				slog.Error("Failed to refresh lock", "key", h.key, "error", err)
				return
			}
		}
	}
}

func (h *redisLock) Release(ctx context.Context) error {
	h.cancel()
	<-h.done
	if err := h.lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return fmt.Errorf("failed to release lock %s: %w", h.key, err)
	}
	return nil
}

// LocalLocker serializes holders inside one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, fmt.Errorf("%s: %w", key, ErrNotObtained)
	}
	l.held[key] = struct{}{}
	return &localLock{owner: l, key: key}, nil
}

type localLock struct {
	owner *LocalLocker
	key   string
	once  sync.Once
}

func (h *localLock) Release(ctx context.Context) error {
	h.once.Do(func() {
		h.owner.mu.Lock()
		delete(h.owner.held, h.key)
		h.owner.mu.Unlock()
	})
	return nil
}

// Hold runs fn while holding key and always releases afterwards.
func Hold(ctx context.Context, l Locker, key string, fn func(ctx context.Context) error) error {
	held, err := l.Obtain(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			slog.Error("Failed to release lock", "key", key, "error", err)
		}
	}()
	return fn(ctx)
}
