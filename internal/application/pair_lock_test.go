package application

import (
	"sync"
	"testing"
	"time"
)

func TestPairLocker_SerializesEitherOrder(t *testing.T) {
	t.Parallel()

	locker := NewPairLocker()
	unlock := locker.Lock("alice", "bob")

	acquired := make(chan struct{})
	go func() {
		release := locker.Lock("bob", "alice")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatalf("expected the reversed pair to wait for the lock")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("expected the lock to be released")
	}
}

func TestPairLocker_IndependentPairs(t *testing.T) {
	t.Parallel()

	locker := NewPairLocker()
	unlock := locker.Lock("alice", "bob")
	defer unlock()

	done := make(chan struct{})
	go func() {
		locker.Lock("alice", "carol")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected an unrelated pair to proceed")
	}
}

func TestPairLocker_ReleasesEntries(t *testing.T) {
	t.Parallel()

	locker := NewPairLocker()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("alice", "bob")
			counter++
			unlock()
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}
	locker.mu.Lock()
	defer locker.mu.Unlock()
	if len(locker.locks) != 0 {
		t.Fatalf("expected no retained locks, got %d", len(locker.locks))
	}
}
