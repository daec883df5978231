package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/date-booking/internal/persistence"
)

func TestBookingService_ConfirmRequiresPayment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	booking := h.propose(t)

	if _, err := h.bookings.ConfirmBooking(ctx, Principal{UserID: "alice"}, booking.ID); !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired, got %v", err)
	}

	h.store.putPayment(booking.ID, "alice", PaymentFailed)
	if _, err := h.bookings.ConfirmBooking(ctx, Principal{UserID: "alice"}, booking.ID); !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("expected a failed payment to be ignored, got %v", err)
	}

	if _, err := h.bookings.ConfirmBooking(ctx, Principal{UserID: "mallory"}, booking.ID); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission for outsider, got %v", err)
	}
}

func TestBookingService_ConfirmBothOrders(t *testing.T) {
	t.Parallel()

	orders := map[string][2]string{
		"requester first": {"bob", "alice"},
		"recipient first": {"alice", "bob"},
	}
	for name, order := range orders {
		order := order
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			h := newHarness(t)
			booking := h.propose(t)

			first := h.confirm(t, order[0], booking.ID)
			if first.Status != BookingProposed || !first.ConfirmedBy(order[0]) || first.ConfirmedBy(order[1]) {
				t.Fatalf("unexpected booking after first confirmation %#v", first)
			}
			if got := len(h.store.activitiesOf(order[1], ActivityBookingUpdate)); got != 1 {
				t.Fatalf("expected counterpart to be told, got %d activities", got)
			}

			again, err := h.bookings.ConfirmBooking(ctx, Principal{UserID: order[0]}, booking.ID)
			if err != nil {
				t.Fatalf("repeat confirmation failed: %v", err)
			}
			if again.Version != first.Version {
				t.Fatalf("expected repeat confirmation to be a no-op")
			}

			final := h.confirm(t, order[1], booking.ID)
			if final.Status != BookingConfirmed || !final.RequesterConfirmed || !final.RecipientConfirmed {
				t.Fatalf("expected CONFIRMED booking, got %#v", final)
			}

			for _, userID := range []string{"alice", "bob"} {
				if got := h.notifier.count(userID, TopicScheduling, ActivityBookingUpdate, bookingWithStatus(BookingConfirmed)); got != 1 {
					t.Fatalf("expected one CONFIRMED event for %s, got %d", userID, got)
				}
			}

			pairing, err := h.matching.GetPairingStatus(ctx, Principal{UserID: "alice"}, "bob")
			if err != nil {
				t.Fatalf("GetPairingStatus failed: %v", err)
			}
			if pairing.Status != PairingScheduled {
				t.Fatalf("expected SCHEDULED pairing, got %s", pairing.Status)
			}

			if _, err := h.bookings.ConfirmBooking(ctx, Principal{UserID: order[0]}, booking.ID); !errors.Is(err, ErrConflict) {
				t.Fatalf("expected ErrConflict on a confirmed booking, got %v", err)
			}
		})
	}
}

func TestBookingService_ConcurrentConfirm(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	booking := h.propose(t)
	h.store.putPayment(booking.ID, "alice", PaymentSuccess)
	h.store.putPayment(booking.ID, "bob", PaymentSuccess)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, userID := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := h.bookings.ConfirmBooking(ctx, Principal{UserID: userID}, booking.ID)
			errs <- err
		}(userID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("ConfirmBooking failed: %v", err)
		}
	}

	stored, err := h.store.GetBooking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if stored.Status != BookingConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", stored.Status)
	}
	for _, userID := range []string{"alice", "bob"} {
		if got := h.notifier.count(userID, TopicScheduling, ActivityBookingUpdate, bookingWithStatus(BookingConfirmed)); got != 1 {
			t.Fatalf("expected one CONFIRMED event for %s, got %d", userID, got)
		}
	}
}

func TestBookingService_CancelResetsPairing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	booking := h.propose(t)

	if err := h.bookings.CancelBooking(ctx, Principal{UserID: "alice"}, booking.ID); err != nil {
		t.Fatalf("CancelBooking failed: %v", err)
	}

	stored, _ := h.store.GetBooking(ctx, booking.ID)
	if stored.Status != BookingCancelled {
		t.Fatalf("expected CANCELLED, got %s", stored.Status)
	}
	pairing, _ := h.store.GetPairing(ctx, "alice", "bob")
	if pairing.Status != PairingWaitingForSchedule || pairing.ASubmitted || pairing.BSubmitted || pairing.BookingID != nil {
		t.Fatalf("expected a reset pairing, got %#v", pairing)
	}
	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		if slots, _ := h.store.ListSlots(ctx, pair[0], pair[1]); len(slots) != 0 {
			t.Fatalf("expected %s slots to be cleared", pair[0])
		}
	}
	if got := len(h.store.activitiesOf("bob", ActivitySchedulingCanceled)); got != 1 {
		t.Fatalf("expected bob to be told about the cancellation, got %d", got)
	}

	_, err := h.matching.Submit(ctx, Principal{UserID: "alice"}, "bob")
	var slotsErr *InsufficientSlotsError
	if !errors.As(err, &slotsErr) || slotsErr.Have != 0 {
		t.Fatalf("expected fresh slots to be required, got %v", err)
	}

	views, err := h.bookings.ListMyBookings(ctx, Principal{UserID: "alice"})
	if err != nil {
		t.Fatalf("ListMyBookings failed: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("expected cancelled bookings to be hidden, got %d", len(views))
	}

	if err := h.bookings.CancelBooking(ctx, Principal{UserID: "alice"}, booking.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second cancel, got %v", err)
	}
}

// flakyPairings fails the next failures pairing updates with err.
type flakyPairings struct {
	PairingRepository
	mu       sync.Mutex
	failures int
	err      error
}

func (f *flakyPairings) UpdatePairing(ctx context.Context, pairing Pairing, expectedVersion int64) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return f.err
	}
	f.mu.Unlock()
	return f.PairingRepository.UpdatePairing(ctx, pairing, expectedVersion)
}

// flakyBookings fails the next failures booking updates with err.
type flakyBookings struct {
	BookingRepository
	mu       sync.Mutex
	failures int
	err      error
}

func (f *flakyBookings) UpdateBooking(ctx context.Context, booking Booking, expectedVersion int64) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return f.err
	}
	f.mu.Unlock()
	return f.BookingRepository.UpdateBooking(ctx, booking, expectedVersion)
}

func TestBookingService_CancelRetriesAfterPairingConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	booking := h.propose(t)

	deps := h.deps
	deps.Repositories.Pairings = &flakyPairings{PairingRepository: h.store, failures: 1, err: persistence.ErrVersionConflict}
	bookings := NewBookingService(deps)

	if err := bookings.CancelBooking(ctx, Principal{UserID: "alice"}, booking.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict from the failed pairing update, got %v", err)
	}
	stored, _ := h.store.GetBooking(ctx, booking.ID)
	if stored.Status != BookingProposed {
		t.Fatalf("expected the booking to stay PROPOSED, got %s", stored.Status)
	}
	if slots, _ := h.store.ListSlots(ctx, "alice", "bob"); len(slots) == 0 {
		t.Fatalf("expected slots to survive the failed cancel")
	}

	if err := bookings.CancelBooking(ctx, Principal{UserID: "alice"}, booking.ID); err != nil {
		t.Fatalf("retried CancelBooking failed: %v", err)
	}
	stored, _ = h.store.GetBooking(ctx, booking.ID)
	pairing, _ := h.store.GetPairing(ctx, "alice", "bob")
	if stored.Status != BookingCancelled || pairing.Status != PairingWaitingForSchedule || pairing.BookingID != nil {
		t.Fatalf("expected a clean cancel on retry, got booking=%s pairing=%#v", stored.Status, pairing)
	}
}

func TestBookingService_CancelRetriesAfterBookingConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	booking := h.propose(t)

	deps := h.deps
	deps.Repositories.Bookings = &flakyBookings{BookingRepository: h.store, failures: 1, err: persistence.ErrVersionConflict}
	bookings := NewBookingService(deps)

	if err := bookings.CancelBooking(ctx, Principal{UserID: "bob"}, booking.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict from the failed booking update, got %v", err)
	}
	pairing, _ := h.store.GetPairing(ctx, "alice", "bob")
	if pairing.Status != PairingWaitingForSchedule {
		t.Fatalf("expected the pairing to be released first, got %s", pairing.Status)
	}

	if err := bookings.CancelBooking(ctx, Principal{UserID: "bob"}, booking.ID); err != nil {
		t.Fatalf("retried CancelBooking failed: %v", err)
	}
	if stored, _ := h.store.GetBooking(ctx, booking.ID); stored.Status != BookingCancelled {
		t.Fatalf("expected CANCELLED after retry, got %s", stored.Status)
	}
}

func TestBookingService_CancelConfirmedPenalizes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	booking := h.propose(t)

	if _, err := h.bookings.CancelConfirmed(ctx, Principal{UserID: "alice"}, booking.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for a proposed booking, got %v", err)
	}

	h.confirm(t, "alice", booking.ID)
	h.confirm(t, "bob", booking.ID)

	until, err := h.bookings.CancelConfirmed(ctx, Principal{UserID: "alice"}, booking.ID)
	if err != nil {
		t.Fatalf("CancelConfirmed failed: %v", err)
	}
	if want := h.clock.Now().Add(24 * time.Hour); !until.Equal(want) {
		t.Fatalf("expected penalty until %v, got %v", want, until)
	}
	if got := len(h.store.activitiesOf("alice", ActivityPenaltyNotice)); got != 1 {
		t.Fatalf("expected a penalty notice, got %d", got)
	}

	_, err = h.matching.Submit(ctx, Principal{UserID: "alice"}, "bob")
	var penalized *PenalizedError
	if !errors.As(err, &penalized) || !penalized.Until.Equal(until) {
		t.Fatalf("expected PenalizedError, got %v", err)
	}

	_, err = h.matching.Submit(ctx, Principal{UserID: "bob"}, "alice")
	var slotsErr *InsufficientSlotsError
	if !errors.As(err, &slotsErr) {
		t.Fatalf("expected the other side to be unaffected, got %v", err)
	}
}

func TestBookingService_CancelConfirmedAfterStart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	booking := h.propose(t)
	h.confirm(t, "alice", booking.ID)
	h.confirm(t, "bob", booking.ID)

	h.clock.Set(booking.Start)
	if _, err := h.bookings.CancelConfirmed(ctx, Principal{UserID: "alice"}, booking.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict once the date started, got %v", err)
	}
}

func TestBookingService_Feedback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	cases := []struct {
		name     string
		alice    [2]bool
		bob      [2]bool
		exchange bool
	}{
		{name: "both attended and want contact", alice: [2]bool{true, true}, bob: [2]bool{true, true}, exchange: true},
		{name: "one side did not attend", alice: [2]bool{false, true}, bob: [2]bool{true, true}},
		{name: "one side declines contact", alice: [2]bool{true, true}, bob: [2]bool{true, false}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			_ = h.store.UpsertParticipant(ctx, Participant{ID: "alice", DisplayName: "Alice", Email: "alice@example.test"})
			_ = h.store.UpsertParticipant(ctx, Participant{ID: "bob", DisplayName: "Bob", Email: "bob@example.test"})

			booking := h.propose(t)
			h.confirm(t, "alice", booking.ID)
			h.confirm(t, "bob", booking.ID)

			if _, err := h.bookings.SubmitFeedback(ctx, FeedbackParams{Principal: Principal{UserID: "alice"}, BookingID: booking.ID, Attended: true, WantsContact: true}); !errors.Is(err, ErrConflict) {
				t.Fatalf("expected ErrConflict before the date ends, got %v", err)
			}

			h.clock.Set(booking.End.Add(time.Minute))
			first, err := h.bookings.SubmitFeedback(ctx, FeedbackParams{
				Principal: Principal{UserID: "alice"}, BookingID: booking.ID,
				Attended: tc.alice[0], WantsContact: tc.alice[1],
			})
			if err != nil {
				t.Fatalf("SubmitFeedback alice failed: %v", err)
			}
			if first.ContactExchanged {
				t.Fatalf("expected no exchange after one answer")
			}
			if _, err := h.bookings.GetContact(ctx, Principal{UserID: "alice"}, booking.ID); !errors.Is(err, ErrPermission) {
				t.Fatalf("expected ErrPermission before exchange, got %v", err)
			}

			second, err := h.bookings.SubmitFeedback(ctx, FeedbackParams{
				Principal: Principal{UserID: "bob"}, BookingID: booking.ID,
				Attended: tc.bob[0], WantsContact: tc.bob[1],
			})
			if err != nil {
				t.Fatalf("SubmitFeedback bob failed: %v", err)
			}
			if second.ContactExchanged != tc.exchange {
				t.Fatalf("expected contact exchanged %v, got %v", tc.exchange, second.ContactExchanged)
			}
			if second.RecipientAttended != nil {
				t.Fatalf("expected alice's answers to be hidden from bob")
			}

			if _, err := h.bookings.SubmitFeedback(ctx, FeedbackParams{Principal: Principal{UserID: "alice"}, BookingID: booking.ID, Attended: true, WantsContact: true}); !errors.Is(err, ErrConflict) {
				t.Fatalf("expected ErrConflict once feedback is complete, got %v", err)
			}

			contact, err := h.bookings.GetContact(ctx, Principal{UserID: "bob"}, booking.ID)
			if tc.exchange {
				if err != nil {
					t.Fatalf("GetContact failed: %v", err)
				}
				if contact.UserID != "alice" || contact.Email != "alice@example.test" {
					t.Fatalf("unexpected contact %#v", contact)
				}
				if got := len(h.store.activitiesOf("alice", ActivityContactExchanged)); got != 1 {
					t.Fatalf("expected a CONTACT_EXCHANGED activity, got %d", got)
				}
				revealed := func(payload any) bool {
					view, ok := payload.(BookingView)
					return ok && view.Booking.ContactExchanged && view.RequesterName == "Bob" &&
						view.PartnerContact != nil && view.PartnerContact.Email == "bob@example.test"
				}
				if got := h.notifier.count("alice", TopicScheduling, ActivityBookingUpdate, revealed); got != 1 {
					t.Fatalf("expected alice to be pushed the revealed view, got %d", got)
				}
				return
			}
			if !errors.Is(err, ErrPermission) {
				t.Fatalf("expected ErrPermission without mutual opt-in, got %v", err)
			}
		})
	}
}

func TestBookingService_Views(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	_ = h.store.UpsertParticipant(ctx, Participant{ID: "alice", DisplayName: "Alice"})
	_ = h.store.UpsertParticipant(ctx, Participant{ID: "bob", DisplayName: "Bob"})
	booking := h.propose(t)

	view, err := h.bookings.GetBookingForPair(ctx, Principal{UserID: "alice"}, "bob")
	if err != nil {
		t.Fatalf("GetBookingForPair failed: %v", err)
	}
	if view.Booking.ID != booking.ID || view.RequesterName != "Bob" || view.RecipientName != "Alice" {
		t.Fatalf("unexpected view %#v", view)
	}
	if view.PartnerContact != nil {
		t.Fatalf("expected no partner contact before exchange")
	}

	if _, err := h.bookings.GetBooking(ctx, Principal{UserID: "mallory"}, booking.ID); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
	if _, err := h.bookings.GetBooking(ctx, Principal{UserID: "alice"}, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	views, err := h.bookings.ListMyBookings(ctx, Principal{UserID: "bob"})
	if err != nil {
		t.Fatalf("ListMyBookings failed: %v", err)
	}
	if len(views) != 1 || views[0].Booking.ID != booking.ID {
		t.Fatalf("unexpected bookings %#v", views)
	}
}

func TestBookingRedactFor(t *testing.T) {
	t.Parallel()

	booking := Booking{
		RequesterID:           "bob",
		RecipientID:           "alice",
		RequesterAttended:     boolPtr(true),
		RecipientAttended:     boolPtr(false),
		RequesterWantsContact: boolPtr(true),
		RecipientWantsContact: boolPtr(false),
	}

	forBob := booking.RedactFor("bob")
	if forBob.RequesterAttended == nil || forBob.RecipientAttended != nil || forBob.RecipientWantsContact != nil {
		t.Fatalf("unexpected redaction for requester %#v", forBob)
	}
	forAlice := booking.RedactFor("alice")
	if forAlice.RecipientAttended == nil || forAlice.RequesterAttended != nil || forAlice.RequesterWantsContact != nil {
		t.Fatalf("unexpected redaction for recipient %#v", forAlice)
	}
	outsider := booking.RedactFor("mallory")
	if outsider.RequesterAttended != nil || outsider.RecipientAttended != nil {
		t.Fatalf("expected outsiders to see no answers")
	}
	if booking.RecipientAttended == nil {
		t.Fatalf("RedactFor must not modify the receiver")
	}
}
