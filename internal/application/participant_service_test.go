package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestParticipantService_UpsertProfile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	cases := []struct {
		name   string
		input  ParticipantInput
		fields []string
	}{
		{name: "valid", input: ParticipantInput{DisplayName: "Alice", Email: "alice@example.test", Latitude: floatPtr(10.77), Longitude: floatPtr(106.70)}},
		{name: "missing name", input: ParticipantInput{}, fields: []string{"displayName"}},
		{name: "bad email", input: ParticipantInput{DisplayName: "Alice", Email: "not-an-email"}, fields: []string{"email"}},
		{name: "half a location", input: ParticipantInput{DisplayName: "Alice", Latitude: floatPtr(1)}, fields: []string{"location"}},
		{name: "out of range", input: ParticipantInput{DisplayName: "Alice", Latitude: floatPtr(91), Longitude: floatPtr(181)}, fields: []string{"latitude", "longitude"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			service := NewParticipantService(h.deps)
			participant, err := service.UpsertProfile(ctx, Principal{UserID: "alice"}, tc.input)
			if len(tc.fields) == 0 {
				if err != nil {
					t.Fatalf("UpsertProfile failed: %v", err)
				}
				if participant.ID != "alice" || participant.DisplayName != "Alice" {
					t.Fatalf("unexpected participant %#v", participant)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			for _, field := range tc.fields {
				if _, ok := vErr.FieldErrors[field]; !ok {
					t.Fatalf("expected field %s in %#v", field, vErr.FieldErrors)
				}
			}
		})
	}
}

func TestParticipantService_KeepsPenalty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	until := h.clock.Now().Add(time.Hour)
	if err := h.store.SetPenalty(ctx, "alice", until); err != nil {
		t.Fatalf("SetPenalty failed: %v", err)
	}

	service := NewParticipantService(h.deps)
	participant, err := service.UpsertProfile(ctx, Principal{UserID: "alice"}, ParticipantInput{DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	if participant.PenalizedUntil == nil || !participant.PenalizedUntil.Equal(until) {
		t.Fatalf("expected the penalty to survive a profile update, got %#v", participant.PenalizedUntil)
	}

	if _, err := service.GetProfile(ctx, Principal{UserID: "nobody"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestActivityService_ListAndMarkRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	h.pair(t, "alice", "bob")
	h.pair(t, "alice", "carol")

	service := NewActivityService(h.deps)
	activities, err := service.ListActivities(ctx, Principal{UserID: "alice"})
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("expected two activities, got %d", len(activities))
	}

	updated, err := service.MarkAllRead(ctx, Principal{UserID: "alice"})
	if err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected two updates, got %d", updated)
	}
	updated, err = service.MarkAllRead(ctx, Principal{UserID: "alice"})
	if err != nil || updated != 0 {
		t.Fatalf("expected a second pass to update nothing, got %d, %v", updated, err)
	}
}
