// Package matching finds the meeting window shared by two availability sets.
package matching

import "time"

// Slot is one availability window of a participant.
type Slot struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the two ranges share any instant.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Duration returns the length of the range.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Window is a qualifying intersection of one requester slot and one recipient slot.
type Window struct {
	Interval
	RequesterSlotID string
	RecipientSlotID string
}

// Candidates returns every intersection of a requester slot with a recipient
// slot that lasts at least minDuration and does not touch a busy interval.
func Candidates(requester, recipient []Slot, minDuration time.Duration, busy []Interval) []Window {
	windows := make([]Window, 0)
	for _, a := range requester {
		for _, b := range recipient {
			start := laterOf(a.Start, b.Start)
			end := earlierOf(a.End, b.End)
			if !start.Before(end) {
				continue
			}
			candidate := Interval{Start: start, End: end}
			if candidate.Duration() < minDuration {
				continue
			}
			if overlapsAny(candidate, busy) {
				continue
			}
			windows = append(windows, Window{
				Interval:        candidate,
				RequesterSlotID: a.ID,
				RecipientSlotID: b.ID,
			})
		}
	}
	return windows
}

// FindEarliest picks the candidate with the earliest start. Ties go to the
// shorter window, then to the lowest requester slot id, then to the lowest
// recipient slot id. The boolean is false when no candidate qualifies.
func FindEarliest(requester, recipient []Slot, minDuration time.Duration, busy []Interval) (Window, bool) {
	var (
		best  Window
		found bool
	)
	for _, candidate := range Candidates(requester, recipient, minDuration, busy) {
		if !found || precedes(candidate, best) {
			best = candidate
			found = true
		}
	}
	return best, found
}

func precedes(a, b Window) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	if a.Duration() != b.Duration() {
		return a.Duration() < b.Duration()
	}
	if a.RequesterSlotID != b.RequesterSlotID {
		return a.RequesterSlotID < b.RequesterSlotID
	}
	return a.RecipientSlotID < b.RecipientSlotID
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, interval := range busy {
		if candidate.Overlaps(interval) {
			return true
		}
	}
	return false
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
