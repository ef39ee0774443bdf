package stripe

import (
	"sync"
)

// LockManager manages per-session locks to prevent concurrent settlement of
// the same checkout session while allowing parallel processing of different
// sessions. Locks are reference counted and dropped once nobody holds or
// waits for them, so the map only grows with in-flight sessions.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*refLock)}
}

// Lock acquires the lock of the given key and returns the function that
// releases it.
func (lm *LockManager) Lock(key string) func() {
	lm.mu.Lock()
	lock, ok := lm.locks[key]
	if !ok {
		lock = &refLock{}
		lm.locks[key] = lock
	}
	lock.refs++
	lm.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		lm.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(lm.locks, key)
		}
		lm.mu.Unlock()
	}
}

// Len returns the number of keys currently locked or waited for.
func (lm *LockManager) Len() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.locks)
}
