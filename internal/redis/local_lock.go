package redisclient

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// localLocker is the single-process Locker used when no Redis is
// configured. Each key maps to a one-slot semaphore that is dropped once no
// goroutine holds or waits on it.
type localLocker struct {
	wait time.Duration

	mu   sync.Mutex
	keys map[string]*localEntry
}

type localEntry struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker(wait time.Duration) Locker {
	return &localLocker{
		wait: wait,
		keys: make(map[string]*localEntry),
	}
}

func (l *localLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	e := l.ref(key)
	defer l.unref(key, e)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.Wrapf(ErrLockNotAcquired, "key %s", key)
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}

func (l *localLocker) ref(key string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.keys[key]
	if !ok {
		e = &localEntry{sem: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	return e
}

func (l *localLocker) unref(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}
