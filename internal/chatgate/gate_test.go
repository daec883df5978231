package chatgate

import (
	"testing"
	"time"
)

func TestGateEvaluate(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.May, 10, 19, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		gate          Gate
		now           time.Time
		wantCanChat   bool
		wantRemaining time.Duration
	}{
		{
			name:          "locked before the unlock window",
			gate:          Gate{UnlockBefore: 4 * time.Hour},
			now:           start.Add(-5 * time.Hour),
			wantCanChat:   false,
			wantRemaining: time.Hour,
		},
		{
			name:        "opens exactly at the threshold",
			gate:        Gate{UnlockBefore: 4 * time.Hour},
			now:         start.Add(-4 * time.Hour),
			wantCanChat: true,
		},
		{
			name:        "stays open after the start without a lock period",
			gate:        Gate{UnlockBefore: 4 * time.Hour},
			now:         start.Add(72 * time.Hour),
			wantCanChat: true,
		},
		{
			name:        "closes once the lock period elapses",
			gate:        Gate{UnlockBefore: 4 * time.Hour, LockAfter: 24 * time.Hour},
			now:         start.Add(24 * time.Hour),
			wantCanChat: false,
		},
		{
			name:        "open inside the lock period",
			gate:        Gate{UnlockBefore: 4 * time.Hour, LockAfter: 24 * time.Hour},
			now:         start.Add(time.Hour),
			wantCanChat: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status := tt.gate.Evaluate(start, tt.now)
			if status.CanChat != tt.wantCanChat {
				t.Fatalf("expected CanChat=%v, got %v", tt.wantCanChat, status.CanChat)
			}
			if status.Remaining != tt.wantRemaining {
				t.Fatalf("expected remaining %v, got %v", tt.wantRemaining, status.Remaining)
			}
			if !status.UnlockAt.Equal(start.Add(-tt.gate.UnlockBefore)) {
				t.Fatalf("unexpected unlock instant %v", status.UnlockAt)
			}
		})
	}
}
