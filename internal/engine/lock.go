package engine

import (
	"context"
	"sync"
	"time"
)

// memoryLockManager serializes per-ticket execution inside a single process.
// Suitable for tests and single-instance deployments.
type memoryLockManager struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLockManager creates an in-process per-key lock manager.
func NewMemoryLockManager() LockManager {
	return &memoryLockManager{locks: make(map[string]*lockEntry)}
}

// Acquire blocks until the key's lock is held or ctx is done. TTL is ignored:
// in-process locks cannot leak past the process.
func (m *memoryLockManager) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	entry, ok := m.locks[key]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		entry.ch <- struct{}{}
		m.locks[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	select {
	case <-entry.ch:
		return func() {
			m.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(m.locks, key)
			}
			m.mu.Unlock()
			entry.ch <- struct{}{}
		}, nil
	case <-ctx.Done():
		m.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
		return nil, ctx.Err()
	}
}
