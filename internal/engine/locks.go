// internal/engine/locks.go
package engine

import "sync"

// userLocks serializes turns per user. A user never has two in-flight
// operations; distinct users proceed in parallel. The map only grows
// with the number of distinct users seen by this process.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*sync.Mutex)}
}

// acquire locks the given user's mutex and returns the unlock func.
func (ul *userLocks) acquire(userID int64) func() {
	ul.mu.Lock()
	lock, ok := ul.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		ul.locks[userID] = lock
	}
	ul.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
