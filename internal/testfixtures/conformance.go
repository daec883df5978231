package testfixtures

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/date-booking/internal/persistence"
)

// StoreOpener returns an empty, migrated store for one subtest.
type StoreOpener func(t *testing.T) persistence.Store

// RunStoreSuite exercises the behaviour every persistence.Store backend must
// share. Subtests run sequentially so openers may reuse one database.
func RunStoreSuite(t *testing.T, open StoreOpener) {
	t.Helper()

	t.Run("slots", func(t *testing.T) { testSlots(t, open(t)) })
	t.Run("pairings", func(t *testing.T) { testPairings(t, open(t)) })
	t.Run("bookings", func(t *testing.T) { testBookings(t, open(t)) })
	t.Run("activities", func(t *testing.T) { testActivities(t, open(t)) })
	t.Run("payments", func(t *testing.T) { testPayments(t, open(t)) })
	t.Run("messages", func(t *testing.T) { testMessages(t, open(t)) })
	t.Run("participants", func(t *testing.T) { testParticipants(t, open(t)) })
}

func testSlots(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	late := NewSlotFixture("alice", "bob", WithSlotWindow(Day(2, 10, 0), Day(2, 12, 0)))
	early := NewSlotFixture("alice", "bob", WithSlotWindow(Day(1, 10, 0), Day(1, 12, 0)))
	other := NewSlotFixture("alice", "carol")
	reverse := NewSlotFixture("bob", "alice")
	for _, slot := range []SlotFixture{late, early, other, reverse} {
		if err := store.CreateSlot(ctx, slot.Persistence()); err != nil {
			t.Fatalf("CreateSlot(%s) returned error: %v", slot.ID, err)
		}
	}
	if err := store.CreateSlot(ctx, early.Persistence()); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := store.GetSlot(ctx, early.ID)
	if err != nil {
		t.Fatalf("GetSlot returned error: %v", err)
	}
	if got.OwnerID != "alice" || !got.Start.Equal(early.Start) || !got.End.Equal(early.End) {
		t.Fatalf("unexpected slot: %+v", got)
	}

	slots, err := store.ListSlots(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("ListSlots returned error: %v", err)
	}
	if len(slots) != 2 || slots[0].ID != early.ID || slots[1].ID != late.ID {
		t.Fatalf("expected slots ordered by start, got %+v", slots)
	}

	if err := store.DeleteSlotsForPair(ctx, "bob", "alice"); err != nil {
		t.Fatalf("DeleteSlotsForPair returned error: %v", err)
	}
	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		left, err := store.ListSlots(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("ListSlots returned error: %v", err)
		}
		if len(left) != 0 {
			t.Fatalf("expected pair slots removed, got %+v", left)
		}
	}

	if err := store.DeleteSlot(ctx, other.ID); err != nil {
		t.Fatalf("DeleteSlot returned error: %v", err)
	}
	if err := store.DeleteSlot(ctx, other.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetSlot(ctx, other.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testPairings(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	pairing := persistence.Pairing{
		UserA:     "alice",
		UserB:     "bob",
		Status:    "WAITING_FOR_SCHEDULE",
		Version:   1,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	if err := store.CreatePairing(ctx, pairing); err != nil {
		t.Fatalf("CreatePairing returned error: %v", err)
	}
	if err := store.CreatePairing(ctx, pairing); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	updated := pairing
	updated.Status = "PENDING_B_AVAIL"
	updated.ASubmitted = true
	updated.Version = 2
	updated.UpdatedAt = referenceTime.Add(time.Minute)
	if err := store.UpdatePairing(ctx, updated, 1); err != nil {
		t.Fatalf("UpdatePairing returned error: %v", err)
	}
	if err := store.UpdatePairing(ctx, updated, 1); !errors.Is(err, persistence.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, err := store.GetPairing(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("GetPairing returned error: %v", err)
	}
	if got.Status != "PENDING_B_AVAIL" || !got.ASubmitted || got.BSubmitted || got.Version != 2 {
		t.Fatalf("unexpected pairing: %+v", got)
	}
	if !got.CreatedAt.Equal(referenceTime) {
		t.Fatalf("expected created_at to be preserved, got %v", got.CreatedAt)
	}

	if _, err := store.GetPairing(ctx, "alice", "zed"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	second := pairing
	second.UserA, second.UserB = "bob", "carol"
	second.UpdatedAt = referenceTime.Add(time.Hour)
	if err := store.CreatePairing(ctx, second); err != nil {
		t.Fatalf("CreatePairing returned error: %v", err)
	}
	list, err := store.ListPairingsForUser(ctx, "bob")
	if err != nil {
		t.Fatalf("ListPairingsForUser returned error: %v", err)
	}
	if len(list) != 2 || list[0].UserB != "carol" {
		t.Fatalf("expected most recently updated first, got %+v", list)
	}
}

func testBookings(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	later := NewBookingFixture("bob", "alice", WithBookingWindow(Day(3, 10, 0), Day(3, 11, 30)))
	earlier := NewBookingFixture("alice", "bob")
	unrelated := NewBookingFixture("carol", "dave")
	for _, booking := range []BookingFixture{later, earlier, unrelated} {
		if err := store.CreateBooking(ctx, booking.Persistence()); err != nil {
			t.Fatalf("CreateBooking(%s) returned error: %v", booking.ID, err)
		}
	}
	if err := store.CreateBooking(ctx, earlier.Persistence()); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	updated := earlier.Persistence()
	attended := true
	updated.RequesterConfirmed = true
	updated.RequesterAttended = &attended
	updated.Version = 2
	if err := store.UpdateBooking(ctx, updated, 1); err != nil {
		t.Fatalf("UpdateBooking returned error: %v", err)
	}
	if err := store.UpdateBooking(ctx, updated, 1); !errors.Is(err, persistence.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, err := store.GetBooking(ctx, earlier.ID)
	if err != nil {
		t.Fatalf("GetBooking returned error: %v", err)
	}
	if !got.RequesterConfirmed || got.RequesterAttended == nil || !*got.RequesterAttended || got.RecipientAttended != nil {
		t.Fatalf("unexpected booking: %+v", got)
	}
	if got.Venue != earlier.Venue || got.Version != 2 {
		t.Fatalf("unexpected booking: %+v", got)
	}

	mine, err := store.ListBookingsForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListBookingsForUser returned error: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != earlier.ID || mine[1].ID != later.ID {
		t.Fatalf("expected bookings ordered by start, got %+v", mine)
	}

	pair, err := store.ListBookingsForPair(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("ListBookingsForPair returned error: %v", err)
	}
	if len(pair) != 2 {
		t.Fatalf("expected both directions for the pair, got %+v", pair)
	}

	if _, err := store.GetBooking(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testActivities(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	ref := "booking-1"
	entries := []persistence.Activity{
		{ID: "act-1", RecipientID: "alice", Type: "MATCH", Content: "matched", CreatedAt: referenceTime},
		{ID: "act-2", RecipientID: "alice", Type: "BOOKING_PROPOSED", Content: "proposed", ReferenceID: &ref, CreatedAt: referenceTime.Add(time.Minute)},
		{ID: "act-3", RecipientID: "bob", Type: "MATCH", Content: "matched", CreatedAt: referenceTime},
	}
	for _, entry := range entries {
		if err := store.CreateActivity(ctx, entry); err != nil {
			t.Fatalf("CreateActivity(%s) returned error: %v", entry.ID, err)
		}
	}

	list, err := store.ListActivities(ctx, "alice")
	if err != nil {
		t.Fatalf("ListActivities returned error: %v", err)
	}
	if len(list) != 2 || list[0].ID != "act-2" || list[0].ReferenceID == nil || *list[0].ReferenceID != ref {
		t.Fatalf("expected newest first with reference, got %+v", list)
	}

	updated, err := store.MarkActivitiesRead(ctx, "alice")
	if err != nil {
		t.Fatalf("MarkActivitiesRead returned error: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 updated, got %d", updated)
	}
	again, err := store.MarkActivitiesRead(ctx, "alice")
	if err != nil {
		t.Fatalf("MarkActivitiesRead returned error: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected no unread entries left, got %d", again)
	}

	bobs, err := store.ListActivities(ctx, "bob")
	if err != nil {
		t.Fatalf("ListActivities returned error: %v", err)
	}
	if len(bobs) != 1 || bobs[0].IsRead {
		t.Fatalf("expected bob's entry to stay unread, got %+v", bobs)
	}
}

func testPayments(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	booking := NewBookingFixture("bob", "alice")
	if err := store.CreateBooking(ctx, booking.Persistence()); err != nil {
		t.Fatalf("CreateBooking returned error: %v", err)
	}

	payment := persistence.Payment{
		TxnRef:    "TXN" + booking.ID,
		BookingID: booking.ID,
		UserID:    "alice",
		Amount:    100000,
		Status:    persistence.PaymentStatusPending,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	if err := store.CreatePayment(ctx, payment); err != nil {
		t.Fatalf("CreatePayment returned error: %v", err)
	}
	if err := store.CreatePayment(ctx, payment); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	paid, err := store.HasSuccessfulPayment(ctx, booking.ID, "alice")
	if err != nil {
		t.Fatalf("HasSuccessfulPayment returned error: %v", err)
	}
	if paid {
		t.Fatalf("expected pending payment not to count")
	}

	response := "00:14000001"
	at := referenceTime.Add(time.Minute)
	if err := store.TransitionPayment(ctx, payment.TxnRef, persistence.PaymentStatusPending, persistence.PaymentStatusSuccess, &response, at); err != nil {
		t.Fatalf("TransitionPayment returned error: %v", err)
	}
	if err := store.TransitionPayment(ctx, payment.TxnRef, persistence.PaymentStatusPending, persistence.PaymentStatusFailed, nil, at); !errors.Is(err, persistence.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if err := store.TransitionPayment(ctx, "missing", persistence.PaymentStatusPending, persistence.PaymentStatusFailed, nil, at); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := store.GetPayment(ctx, payment.TxnRef)
	if err != nil {
		t.Fatalf("GetPayment returned error: %v", err)
	}
	if got.Status != persistence.PaymentStatusSuccess || got.ProviderResponse == nil || *got.ProviderResponse != response {
		t.Fatalf("unexpected payment: %+v", got)
	}

	paid, err = store.HasSuccessfulPayment(ctx, booking.ID, "alice")
	if err != nil {
		t.Fatalf("HasSuccessfulPayment returned error: %v", err)
	}
	if !paid {
		t.Fatalf("expected successful payment to count")
	}
	paid, err = store.HasSuccessfulPayment(ctx, booking.ID, "bob")
	if err != nil {
		t.Fatalf("HasSuccessfulPayment returned error: %v", err)
	}
	if paid {
		t.Fatalf("expected payment to be per participant")
	}
}

func testMessages(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	booking := NewBookingFixture("bob", "alice", WithBookingConfirmed())
	if err := store.CreateBooking(ctx, booking.Persistence()); err != nil {
		t.Fatalf("CreateBooking returned error: %v", err)
	}

	messages := []persistence.Message{
		{ID: "msg-2", BookingID: booking.ID, SenderID: "alice", RecipientID: "bob", Content: "second", CreatedAt: referenceTime.Add(time.Minute)},
		{ID: "msg-1", BookingID: booking.ID, SenderID: "bob", RecipientID: "alice", Content: "first", CreatedAt: referenceTime},
	}
	for _, message := range messages {
		if err := store.CreateMessage(ctx, message); err != nil {
			t.Fatalf("CreateMessage(%s) returned error: %v", message.ID, err)
		}
	}

	list, err := store.ListMessages(ctx, booking.ID)
	if err != nil {
		t.Fatalf("ListMessages returned error: %v", err)
	}
	if len(list) != 2 || list[0].Content != "first" || list[1].Content != "second" {
		t.Fatalf("expected oldest first, got %+v", list)
	}
}

func testParticipants(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	participant := NewParticipantFixture(WithParticipantLocation(10.7769, 106.7009))
	if err := store.UpsertParticipant(ctx, participant.Persistence()); err != nil {
		t.Fatalf("UpsertParticipant returned error: %v", err)
	}

	until := referenceTime.Add(24 * time.Hour)
	if err := store.SetPenalty(ctx, participant.ID, until); err != nil {
		t.Fatalf("SetPenalty returned error: %v", err)
	}

	renamed := participant.Persistence()
	renamed.DisplayName = "Renamed"
	renamed.PenalizedUntil = nil
	if err := store.UpsertParticipant(ctx, renamed); err != nil {
		t.Fatalf("UpsertParticipant returned error: %v", err)
	}

	got, err := store.GetParticipant(ctx, participant.ID)
	if err != nil {
		t.Fatalf("GetParticipant returned error: %v", err)
	}
	if got.DisplayName != "Renamed" {
		t.Fatalf("expected profile update, got %+v", got)
	}
	if got.PenalizedUntil == nil || !got.PenalizedUntil.Equal(until) {
		t.Fatalf("expected upsert to keep penalty, got %+v", got.PenalizedUntil)
	}
	if got.Latitude == nil || *got.Latitude != 10.7769 {
		t.Fatalf("unexpected latitude: %+v", got.Latitude)
	}

	if _, err := store.GetParticipant(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
