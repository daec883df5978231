package persistence

import (
	"context"
	"time"
)

// SlotRepository stores availability slots.
type SlotRepository interface {
	CreateSlot(ctx context.Context, slot Slot) error
	GetSlot(ctx context.Context, id string) (Slot, error)
	DeleteSlot(ctx context.Context, id string) error
	ListSlots(ctx context.Context, ownerID, counterpartID string) ([]Slot, error)
	// DeleteSlotsForPair removes the slots of both users declared for each other.
	DeleteSlotsForPair(ctx context.Context, userA, userB string) error
}

// PairingRepository stores pairing state. Updates are rejected with
// ErrVersionConflict when the stored version differs from expectedVersion.
type PairingRepository interface {
	CreatePairing(ctx context.Context, pairing Pairing) error
	GetPairing(ctx context.Context, userA, userB string) (Pairing, error)
	UpdatePairing(ctx context.Context, pairing Pairing, expectedVersion int64) error
	ListPairingsForUser(ctx context.Context, userID string) ([]Pairing, error)
}

// BookingRepository stores bookings with the same version discipline as pairings.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	UpdateBooking(ctx context.Context, booking Booking, expectedVersion int64) error
	ListBookingsForUser(ctx context.Context, userID string) ([]Booking, error)
	ListBookingsForPair(ctx context.Context, userA, userB string) ([]Booking, error)
}

// ActivityRepository stores activity feed entries.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	ListActivities(ctx context.Context, recipientID string) ([]Activity, error)
	MarkActivitiesRead(ctx context.Context, recipientID string) (int, error)
}

// PaymentRepository stores provider transactions.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment Payment) error
	GetPayment(ctx context.Context, txnRef string) (Payment, error)
	// TransitionPayment moves a payment from one status to another. It returns
	// ErrVersionConflict when the stored status is not from.
	TransitionPayment(ctx context.Context, txnRef, from, to string, providerResponse *string, at time.Time) error
	HasSuccessfulPayment(ctx context.Context, bookingID, userID string) (bool, error)
}

// MessageRepository stores chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, message Message) error
	ListMessages(ctx context.Context, bookingID string) ([]Message, error)
}

// ParticipantRepository stores cached participant profiles. UpsertParticipant
// never changes PenalizedUntil; SetPenalty does.
type ParticipantRepository interface {
	UpsertParticipant(ctx context.Context, participant Participant) error
	GetParticipant(ctx context.Context, id string) (Participant, error)
	SetPenalty(ctx context.Context, id string, until time.Time) error
}

// Store aggregates every repository a backend provides.
type Store interface {
	SlotRepository
	PairingRepository
	BookingRepository
	ActivityRepository
	PaymentRepository
	MessageRepository
	ParticipantRepository
	Migrate(ctx context.Context) error
	Close() error
}

// Status values shared by every backend.
const (
	BookingStatusProposed  = "PROPOSED"
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusCancelled = "CANCELLED"

	PaymentStatusPending = "PENDING"
	PaymentStatusSuccess = "SUCCESS"
	PaymentStatusFailed  = "FAILED"
)

// PairKey returns the normalized ordering of two user identifiers.
func PairKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
