package storage

import (
	"context"
	"sync"
)

// rowLocks is a table of exclusive locks keyed by row identity. Each lock is a
// one-slot channel so waiters can give up when their context ends.
type rowLocks struct {
	mu   sync.Mutex
	rows map[string]*rowLock
}

type rowLock struct {
	slot chan struct{}
	refs int
}

func newRowLocks() *rowLocks {
	return &rowLocks{rows: make(map[string]*rowLock)}
}

func (l *rowLocks) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	rl, ok := l.rows[key]
	if !ok {
		rl = &rowLock{slot: make(chan struct{}, 1)}
		l.rows[key] = rl
	}
	rl.refs++
	l.mu.Unlock()

	select {
	case rl.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.unref(key, rl)
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *rowLocks) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rl, ok := l.rows[key]
	if !ok {
		return
	}
	<-rl.slot
	l.unref(key, rl)
}

// unref drops a reference; callers hold l.mu.
func (l *rowLocks) unref(key string, rl *rowLock) {
	rl.refs--
	if rl.refs == 0 {
		delete(l.rows, key)
	}
}
