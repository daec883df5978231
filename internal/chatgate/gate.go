// Package chatgate derives whether two booking participants may chat at a
// given instant. Nothing is stored; every answer is a function of the booking
// start and the clock.
package chatgate

import "time"

// Gate holds the lead time before a date during which chat opens, and an
// optional period after the start when it closes again. A zero LockAfter
// keeps the chat open indefinitely.
type Gate struct {
	UnlockBefore time.Duration
	LockAfter    time.Duration
}

// Status is the evaluated gate for one booking at one instant.
type Status struct {
	CanChat   bool
	UnlockAt  time.Time
	LockAt    *time.Time
	Remaining time.Duration
}

// UnlockAt returns the first instant chat is permitted for a date starting at start.
func (g Gate) UnlockAt(start time.Time) time.Time {
	return start.Add(-g.UnlockBefore)
}

// Evaluate reports the gate at now. Remaining is the time left until unlock
// and is zero once the chat is open or has closed.
func (g Gate) Evaluate(start, now time.Time) Status {
	status := Status{UnlockAt: g.UnlockAt(start)}
	if g.LockAfter > 0 {
		lockAt := start.Add(g.LockAfter)
		status.LockAt = &lockAt
	}

	if now.Before(status.UnlockAt) {
		status.Remaining = status.UnlockAt.Sub(now)
		return status
	}
	if status.LockAt != nil && !now.Before(*status.LockAt) {
		return status
	}
	status.CanChat = true
	return status
}

// CanChat is shorthand for Evaluate(start, now).CanChat.
func (g Gate) CanChat(start, now time.Time) bool {
	return g.Evaluate(start, now).CanChat
}
