// Package lock provides per-key mutual exclusion for ledger writes.
package lock

import (
	"context"
	"sync"

	"github.com/bobmcallan/playasset/internal/interfaces"
)

type keyedMutex struct {
	ch   chan struct{} // buffered 1; holding the token means holding the lock
	refs int
}

// Local serializes work per key within one process. Entries are reference
// counted and dropped when no goroutine holds or waits on them.
type Local struct {
	mu    sync.Mutex
	locks map[string]*keyedMutex
}

// NewLocal creates an in-process keyed locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*keyedMutex)}
}

// Lock blocks until key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	km, ok := l.locks[key]
	if !ok {
		km = &keyedMutex{ch: make(chan struct{}, 1)}
		l.locks[key] = km
	}
	km.refs++
	l.mu.Unlock()

	select {
	case km.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, km)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-km.ch
			l.release(key, km)
		})
	}, nil
}

func (l *Local) release(key string, km *keyedMutex) {
	l.mu.Lock()
	km.refs--
	if km.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// size reports tracked keys; used by tests.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

var _ interfaces.Locker = (*Local)(nil)
