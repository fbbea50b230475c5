// Package savelock provides per-key mutual exclusion for collection saves.
// A lock is never waited on: if another save holds it, Acquire fails fast
// with ErrLocked so the caller can tell the user a save is already running.
package savelock

import (
	"context"
	"errors"
	"sync"
)

var ErrLocked = errors.New("lock is held by another save")

// Locker hands out per-key locks.
type Locker interface {
	// Acquire takes the lock for key and returns the function that releases it.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Local locks within a single process. Keys are forgotten once released.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrLocked
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
