package application

import (
	"context"
	"time"
)

// SlotRepository captures slot persistence.
type SlotRepository interface {
	CreateSlot(ctx context.Context, slot Slot) error
	GetSlot(ctx context.Context, id string) (Slot, error)
	DeleteSlot(ctx context.Context, id string) error
	ListSlots(ctx context.Context, ownerID, counterpartID string) ([]Slot, error)
	DeleteSlotsForPair(ctx context.Context, userA, userB string) error
}

// PairingRepository captures pairing persistence. Updates carry the version
// the caller read; implementations reject stale writes.
type PairingRepository interface {
	CreatePairing(ctx context.Context, pairing Pairing) error
	GetPairing(ctx context.Context, userA, userB string) (Pairing, error)
	UpdatePairing(ctx context.Context, pairing Pairing, expectedVersion int64) error
	ListPairingsForUser(ctx context.Context, userID string) ([]Pairing, error)
}

// BookingRepository captures booking persistence with the same version discipline.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	UpdateBooking(ctx context.Context, booking Booking, expectedVersion int64) error
	ListBookingsForUser(ctx context.Context, userID string) ([]Booking, error)
}

// ActivityRepository captures the activity feed.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	ListActivities(ctx context.Context, recipientID string) ([]Activity, error)
	MarkActivitiesRead(ctx context.Context, recipientID string) (int, error)
}

// PaymentRepository captures provider transactions.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment Payment) error
	GetPayment(ctx context.Context, txnRef string) (Payment, error)
	TransitionPayment(ctx context.Context, txnRef string, from, to PaymentStatus, providerResponse *string, at time.Time) error
	HasSuccessfulPayment(ctx context.Context, bookingID, userID string) (bool, error)
}

// MessageRepository captures chat history.
type MessageRepository interface {
	CreateMessage(ctx context.Context, message Message) error
	ListMessages(ctx context.Context, bookingID string) ([]Message, error)
}

// ParticipantRepository captures cached participant profiles.
type ParticipantRepository interface {
	UpsertParticipant(ctx context.Context, participant Participant) error
	GetParticipant(ctx context.Context, id string) (Participant, error)
	SetPenalty(ctx context.Context, id string, until time.Time) error
}

// Repositories groups every store a service may need.
type Repositories struct {
	Slots        SlotRepository
	Pairings     PairingRepository
	Bookings     BookingRepository
	Activities   ActivityRepository
	Payments     PaymentRepository
	Messages     MessageRepository
	Participants ParticipantRepository
}
