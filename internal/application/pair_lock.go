package application

import (
	"sync"

	"github.com/example/date-booking/internal/persistence"
)

// PairLocker serializes mutations of one pair of users within a process.
// Locks are reference counted and released from the map once unused.
type PairLocker struct {
	mu    sync.Mutex
	locks map[string]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

// NewPairLocker returns an empty locker.
func NewPairLocker() *PairLocker {
	return &PairLocker{locks: make(map[string]*pairLock)}
}

// Lock blocks until the pair (a, b) is free and returns its release function.
// The order of a and b does not matter.
func (l *PairLocker) Lock(a, b string) func() {
	userA, userB := persistence.PairKey(a, b)
	key := userA + "\x00" + userB

	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &pairLock{}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			lock.mu.Unlock()
			l.mu.Lock()
			lock.refs--
			if lock.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}
