package client

import (
	"testing"
	"time"
)

func TestNotificationFilterWindow(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)
	filter := NewNotificationFilter(0, 0)

	steps := []struct {
		content  string
		at       time.Duration
		suppress bool
	}{
		{content: "Date confirmed", at: 0, suppress: false},
		{content: "Date confirmed", at: 1500 * time.Millisecond, suppress: true},
		{content: "Date confirmed", at: 2 * time.Second, suppress: false},
		{content: "New message", at: 2100 * time.Millisecond, suppress: false},
		{content: "Date confirmed", at: 2200 * time.Millisecond, suppress: false},
	}
	for i, step := range steps {
		if got := filter.ShouldSuppress(step.content, base.Add(step.at)); got != step.suppress {
			t.Fatalf("step %d (%q at %v): expected suppress=%v", i, step.content, step.at, step.suppress)
		}
	}
}

func TestNotificationFilterCapacity(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)
	filter := NewNotificationFilter(time.Minute, 2)

	filter.ShouldSuppress("a", now)
	filter.ShouldSuppress("b", now)
	if !filter.ShouldSuppress("a", now) {
		t.Fatalf("expected a to be remembered")
	}
	filter.ShouldSuppress("c", now)
	if filter.ShouldSuppress("a", now) {
		t.Fatalf("expected a to be evicted as the oldest entry")
	}
}

func TestFilteredNotifier(t *testing.T) {
	t.Parallel()

	current := time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)
	next := &recordingNotifier{}
	notifier := NewFilteredNotifier(next, nil, func() time.Time { return current })

	notifier.Notify(LevelInfo, "You matched!")
	notifier.Notify(LevelInfo, "You matched!")
	current = current.Add(3 * time.Second)
	notifier.Notify(LevelInfo, "You matched!")

	if next.count() != 2 {
		t.Fatalf("expected two notifications, got %d", next.count())
	}
}
