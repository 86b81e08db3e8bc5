// internal/services/lock_manager.go
package services

import (
	"sync"
	"time"
)

const (
	maxIdleLocks   = 200
	lockIdleExpiry = 30 * time.Minute
)

// LockManager hands out one mutex per resource id. Story enhancement and
// character generation serialize on it.
type LockManager struct {
	locks    map[string]*lockEntry
	mu       sync.Mutex
	ticker   *time.Ticker
	stop     chan struct{}
	stopOnce sync.Once
}

type lockEntry struct {
	mu       sync.Mutex
	lastUsed time.Time
	refs     int
}

// NewLockManager starts a background sweep of idle locks. Call Close to stop it.
func NewLockManager() *LockManager {
	lm := &LockManager{
		locks:  make(map[string]*lockEntry),
		ticker: time.NewTicker(5 * time.Minute),
		stop:   make(chan struct{}),
	}
	go lm.sweepLoop()
	return lm
}

func (lm *LockManager) acquire(id string) *lockEntry {
	lm.mu.Lock()
	entry, ok := lm.locks[id]
	if !ok {
		entry = &lockEntry{}
		lm.locks[id] = entry
	}
	entry.refs++
	entry.lastUsed = time.Now()
	lm.mu.Unlock()

	entry.mu.Lock()
	return entry
}

func (lm *LockManager) release(entry *lockEntry) {
	entry.mu.Unlock()

	lm.mu.Lock()
	entry.refs--
	entry.lastUsed = time.Now()
	lm.mu.Unlock()
}

// WithLock runs fn while holding the lock for id.
func (lm *LockManager) WithLock(id string, fn func() error) error {
	entry := lm.acquire(id)
	defer lm.release(entry)
	return fn()
}

// TryLock returns false without blocking when id is already held. The
// returned func releases the lock.
func (lm *LockManager) TryLock(id string) (func(), bool) {
	lm.mu.Lock()
	entry, ok := lm.locks[id]
	if !ok {
		entry = &lockEntry{}
		lm.locks[id] = entry
	}
	if !entry.mu.TryLock() {
		lm.mu.Unlock()
		return nil, false
	}
	entry.refs++
	entry.lastUsed = time.Now()
	lm.mu.Unlock()

	return func() { lm.release(entry) }, true
}

// Size is the number of tracked lock entries.
func (lm *LockManager) Size() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.locks)
}

func (lm *LockManager) sweepLoop() {
	for {
		select {
		case <-lm.ticker.C:
			lm.sweep(time.Now(), maxIdleLocks)
		case <-lm.stop:
			return
		}
	}
}

// sweep drops unreferenced locks idle longer than lockIdleExpiry once the
// table grows past limit.
func (lm *LockManager) sweep(now time.Time, limit int) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if len(lm.locks) <= limit {
		return
	}
	for id, entry := range lm.locks {
		if entry.refs == 0 && now.Sub(entry.lastUsed) > lockIdleExpiry {
			delete(lm.locks, id)
		}
	}
}

// Close stops the sweep goroutine.
func (lm *LockManager) Close() {
	lm.stopOnce.Do(func() {
		lm.ticker.Stop()
		close(lm.stop)
	})
}
