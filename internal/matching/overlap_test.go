package matching

import (
	"testing"
	"time"
)

var base = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return base.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func slot(id string, start, end time.Time) Slot {
	return Slot{ID: id, Start: start, End: end}
}

func TestFindEarliest(t *testing.T) {
	t.Parallel()

	minDuration := 90 * time.Minute

	t.Run("returns the ninety minute overlap on the shared day", func(t *testing.T) {
		t.Parallel()

		requester := []Slot{
			slot("a1", at(1, 10, 0), at(1, 12, 0)),
			slot("a2", at(2, 10, 0), at(2, 12, 0)),
			slot("a3", at(3, 10, 0), at(3, 12, 0)),
		}
		recipient := []Slot{
			slot("b1", at(2, 10, 30), at(2, 13, 0)),
			slot("b2", at(2, 14, 0), at(2, 16, 0)),
			slot("b3", at(2, 17, 0), at(2, 19, 0)),
		}

		window, ok := FindEarliest(requester, recipient, minDuration, nil)
		if !ok {
			t.Fatalf("expected a window")
		}
		if !window.Start.Equal(at(2, 10, 30)) || !window.End.Equal(at(2, 12, 0)) {
			t.Fatalf("unexpected window %v - %v", window.Start, window.End)
		}
		if window.RequesterSlotID != "a2" || window.RecipientSlotID != "b1" {
			t.Fatalf("unexpected slot ids %s/%s", window.RequesterSlotID, window.RecipientSlotID)
		}
	})

	t.Run("chooses the globally earliest start regardless of input order", func(t *testing.T) {
		t.Parallel()

		requester := []Slot{
			slot("a1", at(5, 8, 0), at(5, 12, 0)),
			slot("a2", at(1, 8, 0), at(1, 12, 0)),
		}
		recipient := []Slot{
			slot("b1", at(5, 8, 0), at(5, 12, 0)),
			slot("b2", at(1, 9, 0), at(1, 11, 0)),
		}

		window, ok := FindEarliest(requester, recipient, minDuration, nil)
		if !ok {
			t.Fatalf("expected a window")
		}
		if !window.Start.Equal(at(1, 9, 0)) {
			t.Fatalf("expected earliest start, got %v", window.Start)
		}
	})

	t.Run("discards intersections shorter than the minimum", func(t *testing.T) {
		t.Parallel()

		requester := []Slot{slot("a1", at(1, 10, 0), at(1, 12, 0))}
		recipient := []Slot{slot("b1", at(1, 11, 0), at(1, 13, 0))}

		if _, ok := FindEarliest(requester, recipient, minDuration, nil); ok {
			t.Fatalf("expected no window for a sixty minute overlap")
		}
	})

	t.Run("breaks start ties by shortest duration then requester slot id", func(t *testing.T) {
		t.Parallel()

		requester := []Slot{
			slot("a2", at(1, 10, 0), at(1, 14, 0)),
			slot("a1", at(1, 10, 0), at(1, 14, 0)),
		}
		recipient := []Slot{
			slot("b1", at(1, 10, 0), at(1, 14, 0)),
			slot("b2", at(1, 10, 0), at(1, 11, 30)),
		}

		window, ok := FindEarliest(requester, recipient, minDuration, nil)
		if !ok {
			t.Fatalf("expected a window")
		}
		if window.Duration() != minDuration {
			t.Fatalf("expected the shortest window, got %v", window.Duration())
		}
		if window.RequesterSlotID != "a1" || window.RecipientSlotID != "b2" {
			t.Fatalf("unexpected tie break %s/%s", window.RequesterSlotID, window.RecipientSlotID)
		}
	})

	t.Run("skips intersections that collide with busy intervals", func(t *testing.T) {
		t.Parallel()

		requester := []Slot{
			slot("a1", at(1, 10, 0), at(1, 12, 0)),
			slot("a2", at(2, 10, 0), at(2, 12, 0)),
		}
		recipient := []Slot{
			slot("b1", at(1, 10, 0), at(1, 12, 0)),
			slot("b2", at(2, 10, 0), at(2, 12, 0)),
		}
		busy := []Interval{{Start: at(1, 11, 0), End: at(1, 13, 0)}}

		window, ok := FindEarliest(requester, recipient, minDuration, busy)
		if !ok {
			t.Fatalf("expected a window")
		}
		if !window.Start.Equal(at(2, 10, 0)) {
			t.Fatalf("expected the busy day to be skipped, got %v", window.Start)
		}
	})

	t.Run("touching slots do not overlap", func(t *testing.T) {
		t.Parallel()

		requester := []Slot{slot("a1", at(1, 10, 0), at(1, 12, 0))}
		recipient := []Slot{slot("b1", at(1, 12, 0), at(1, 14, 0))}

		if _, ok := FindEarliest(requester, recipient, time.Minute, nil); ok {
			t.Fatalf("expected no window for adjacent slots")
		}
	})
}

func TestCandidatesEnumeratesEveryQualifyingPair(t *testing.T) {
	t.Parallel()

	requester := []Slot{
		slot("a1", at(1, 8, 0), at(1, 18, 0)),
	}
	recipient := []Slot{
		slot("b1", at(1, 8, 0), at(1, 10, 0)),
		slot("b2", at(1, 12, 0), at(1, 13, 0)),
		slot("b3", at(1, 15, 0), at(1, 18, 0)),
	}

	windows := Candidates(requester, recipient, 90*time.Minute, nil)
	if len(windows) != 2 {
		t.Fatalf("expected two windows, got %d", len(windows))
	}
	for _, window := range windows {
		if window.RecipientSlotID == "b2" {
			t.Fatalf("short intersection should be discarded")
		}
	}
}
