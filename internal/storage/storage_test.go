package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/persistence"
	"github.com/example/date-booking/internal/storage"
)

func TestOpenRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := storage.Open(context.Background(), storage.Options{Backend: "mongo"})
	if err == nil || !strings.Contains(err.Error(), "unknown backend") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}

func TestOpenPostgresRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := storage.Open(context.Background(), storage.Options{Backend: storage.BackendPostgres}); err == nil {
		t.Fatalf("expected error without a database URL")
	}
}

func TestRepositoriesRoundTrip(t *testing.T) {
	t.Parallel()

	backends := map[string]storage.Options{
		"memory": {Backend: storage.BackendMemory},
		"sqlite": {Backend: storage.BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "roundtrip.db")},
	}
	for name, opts := range backends {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store, err := storage.Open(ctx, opts)
			if err != nil {
				t.Fatalf("Open returned error: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })

			repos := storage.Repositories(store)
			now := time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)

			pairing := application.Pairing{
				UserA:     "alice",
				UserB:     "bob",
				Status:    application.PairingWaitingForSchedule,
				Version:   1,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := repos.Pairings.CreatePairing(ctx, pairing); err != nil {
				t.Fatalf("CreatePairing returned error: %v", err)
			}
			gotPairing, err := repos.Pairings.GetPairing(ctx, "alice", "bob")
			if err != nil {
				t.Fatalf("GetPairing returned error: %v", err)
			}
			if gotPairing.Status != application.PairingWaitingForSchedule {
				t.Fatalf("unexpected pairing status %q", gotPairing.Status)
			}

			wants := true
			booking := application.Booking{
				ID:                    "b1",
				RequesterID:           "bob",
				RecipientID:           "alice",
				Start:                 now.Add(24 * time.Hour),
				End:                   now.Add(24*time.Hour + 90*time.Minute),
				Venue:                 "Cafe",
				Status:                application.BookingProposed,
				RequesterWantsContact: &wants,
				Version:               1,
				CreatedAt:             now,
				UpdatedAt:             now,
			}
			if err := repos.Bookings.CreateBooking(ctx, booking); err != nil {
				t.Fatalf("CreateBooking returned error: %v", err)
			}
			wants = false
			gotBooking, err := repos.Bookings.GetBooking(ctx, "b1")
			if err != nil {
				t.Fatalf("GetBooking returned error: %v", err)
			}
			if gotBooking.Status != application.BookingProposed || gotBooking.RequesterWantsContact == nil || !*gotBooking.RequesterWantsContact {
				t.Fatalf("unexpected booking: %+v", gotBooking)
			}

			payment := application.Payment{
				TxnRef:    "TXN1",
				BookingID: "b1",
				UserID:    "alice",
				Amount:    100000,
				Status:    application.PaymentPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := repos.Payments.CreatePayment(ctx, payment); err != nil {
				t.Fatalf("CreatePayment returned error: %v", err)
			}
			if err := repos.Payments.TransitionPayment(ctx, "TXN1", application.PaymentPending, application.PaymentSuccess, nil, now); err != nil {
				t.Fatalf("TransitionPayment returned error: %v", err)
			}
			gotPayment, err := repos.Payments.GetPayment(ctx, "TXN1")
			if err != nil {
				t.Fatalf("GetPayment returned error: %v", err)
			}
			if gotPayment.Status != application.PaymentSuccess {
				t.Fatalf("unexpected payment status %q", gotPayment.Status)
			}

			ref := "b1"
			if err := repos.Activities.CreateActivity(ctx, application.Activity{
				ID:          "a1",
				RecipientID: "alice",
				Type:        application.ActivityBookingProposed,
				Content:     "proposed",
				ReferenceID: &ref,
				CreatedAt:   now,
			}); err != nil {
				t.Fatalf("CreateActivity returned error: %v", err)
			}
			activities, err := repos.Activities.ListActivities(ctx, "alice")
			if err != nil {
				t.Fatalf("ListActivities returned error: %v", err)
			}
			if len(activities) != 1 || activities[0].Type != application.ActivityBookingProposed {
				t.Fatalf("unexpected activities: %+v", activities)
			}

			if _, err := repos.Bookings.GetBooking(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected persistence.ErrNotFound, got %v", err)
			}
		})
	}
}
