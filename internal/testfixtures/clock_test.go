package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	t.Parallel()

	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockMovesThroughABooking(t *testing.T) {
	t.Parallel()

	clock := NewClock(ReferenceTime())
	now := clock.NowFunc()
	start := Day(1, 10, 0)

	if got := clock.Until(start, -4*time.Hour); !got.Equal(Day(1, 6, 0)) {
		t.Fatalf("expected chat unlock instant, got %v", got)
	}
	if got := clock.Advance(4 * time.Hour); !got.Equal(start) || !now().Equal(start) {
		t.Fatalf("expected booking start via Advance and NowFunc, got %v / %v", got, now())
	}

	clock.Set(start.In(time.FixedZone("ICT", 7*60*60)))
	if got := clock.Now(); got.Location() != time.UTC || !got.Equal(start) {
		t.Fatalf("expected the clock to normalise to UTC, got %v", got)
	}
}

func TestNilClockNowFuncFallsBack(t *testing.T) {
	t.Parallel()

	var clock *Clock
	if clock.NowFunc() == nil {
		t.Fatalf("expected a fallback time source")
	}
}
