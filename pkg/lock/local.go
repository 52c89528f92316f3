package lock

import (
	"context"
	"sync"

	"github.com/pg-sharding/shroute/pkg/shlog"
)

type keyLock struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is an in-process arena of per-key locks. Entries are dropped once nobody holds or waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

var _ Locker = &LocalLocker{}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		locks: map[string]*keyLock{},
	}
}

func (l *LocalLocker) acquire(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *LocalLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	kl := l.acquire(key)

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ctx.Err()
	}

	shlog.Zero.Debug().Str("key", key).Msg("local lock acquired")

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(key, kl)
			shlog.Zero.Debug().Str("key", key).Msg("local lock released")
		})
	}, nil
}

func (l *LocalLocker) Close() error {
	return nil
}

// Size reports how many keys are currently held or awaited.
func (l *LocalLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
