package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/date-booking/internal/persistence"
)

// Storage provides an in-process persistence layer implementation. It is used
// by tests and by single-node deployments that do not need durability.
type Storage struct {
	mu           sync.RWMutex
	slots        map[string]persistence.Slot
	pairings     map[string]persistence.Pairing
	bookings     map[string]persistence.Booking
	activities   map[string]persistence.Activity
	payments     map[string]persistence.Payment
	messages     map[string]persistence.Message
	participants map[string]persistence.Participant
}

var _ persistence.Store = (*Storage)(nil)

// Open returns a new empty Storage instance.
func Open() *Storage {
	return &Storage{
		slots:        make(map[string]persistence.Slot),
		pairings:     make(map[string]persistence.Pairing),
		bookings:     make(map[string]persistence.Booking),
		activities:   make(map[string]persistence.Activity),
		payments:     make(map[string]persistence.Payment),
		messages:     make(map[string]persistence.Message),
		participants: make(map[string]persistence.Participant),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// Migrate initialises the storage. No-op for the in-memory implementation.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// --- SlotRepository implementation ---

// CreateSlot stores a new slot.
func (s *Storage) CreateSlot(ctx context.Context, slot persistence.Slot) error {
	if slot.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if !slot.Start.Before(slot.End) {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[slot.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.slots[slot.ID] = slot
	return nil
}

// GetSlot retrieves a slot by ID.
func (s *Storage) GetSlot(ctx context.Context, id string) (persistence.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slots[id]
	if !ok {
		return persistence.Slot{}, persistence.ErrNotFound
	}
	return slot, nil
}

// DeleteSlot removes a slot.
func (s *Storage) DeleteSlot(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.slots, id)
	return nil
}

// ListSlots returns the owner's slots for a counterpart ordered by start time.
func (s *Storage) ListSlots(ctx context.Context, ownerID, counterpartID string) ([]persistence.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := make([]persistence.Slot, 0)
	for _, slot := range s.slots {
		if slot.OwnerID == ownerID && slot.CounterpartID == counterpartID {
			slots = append(slots, slot)
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Start.Equal(slots[j].Start) {
			return slots[i].ID < slots[j].ID
		}
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots, nil
}

// DeleteSlotsForPair removes every slot the two users declared for each other.
func (s *Storage) DeleteSlotsForPair(ctx context.Context, userA, userB string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, slot := range s.slots {
		if (slot.OwnerID == userA && slot.CounterpartID == userB) || (slot.OwnerID == userB && slot.CounterpartID == userA) {
			delete(s.slots, id)
		}
	}
	return nil
}

// --- PairingRepository implementation ---

// CreatePairing stores a new pairing.
func (s *Storage) CreatePairing(ctx context.Context, pairing persistence.Pairing) error {
	pairing.UserA, pairing.UserB = persistence.PairKey(pairing.UserA, pairing.UserB)
	if pairing.UserA == "" || pairing.UserA == pairing.UserB {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairingKey(pairing.UserA, pairing.UserB)
	if _, ok := s.pairings[key]; ok {
		return persistence.ErrDuplicate
	}
	s.pairings[key] = clonePairing(pairing)
	return nil
}

// GetPairing retrieves the pairing of two users in either order.
func (s *Storage) GetPairing(ctx context.Context, userA, userB string) (persistence.Pairing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pairing, ok := s.pairings[pairingKey(persistence.PairKey(userA, userB))]
	if !ok {
		return persistence.Pairing{}, persistence.ErrNotFound
	}
	return clonePairing(pairing), nil
}

// UpdatePairing replaces a pairing when its stored version matches.
func (s *Storage) UpdatePairing(ctx context.Context, pairing persistence.Pairing, expectedVersion int64) error {
	pairing.UserA, pairing.UserB = persistence.PairKey(pairing.UserA, pairing.UserB)

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairingKey(pairing.UserA, pairing.UserB)
	current, ok := s.pairings[key]
	if !ok {
		return persistence.ErrNotFound
	}
	if current.Version != expectedVersion {
		return persistence.ErrVersionConflict
	}
	pairing.CreatedAt = current.CreatedAt
	s.pairings[key] = clonePairing(pairing)
	return nil
}

// ListPairingsForUser returns the user's pairings, most recently updated first.
func (s *Storage) ListPairingsForUser(ctx context.Context, userID string) ([]persistence.Pairing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pairings := make([]persistence.Pairing, 0)
	for _, pairing := range s.pairings {
		if pairing.UserA == userID || pairing.UserB == userID {
			pairings = append(pairings, clonePairing(pairing))
		}
	}
	sort.Slice(pairings, func(i, j int) bool {
		if pairings[i].UpdatedAt.Equal(pairings[j].UpdatedAt) {
			return pairingKey(pairings[i].UserA, pairings[i].UserB) < pairingKey(pairings[j].UserA, pairings[j].UserB)
		}
		return pairings[i].UpdatedAt.After(pairings[j].UpdatedAt)
	})
	return pairings, nil
}

// --- BookingRepository implementation ---

// CreateBooking stores a new booking.
func (s *Storage) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[booking.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, ok := s.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return cloneBooking(booking), nil
}

// UpdateBooking replaces a booking when its stored version matches.
func (s *Storage) UpdateBooking(ctx context.Context, booking persistence.Booking, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.bookings[booking.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if current.Version != expectedVersion {
		return persistence.ErrVersionConflict
	}
	booking.CreatedAt = current.CreatedAt
	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

// ListBookingsForUser returns bookings the user participates in ordered by start time.
func (s *Storage) ListBookingsForUser(ctx context.Context, userID string) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterBookingsLocked(func(b persistence.Booking) bool {
		return b.RequesterID == userID || b.RecipientID == userID
	}), nil
}

// ListBookingsForPair returns the bookings shared by two users ordered by start time.
func (s *Storage) ListBookingsForPair(ctx context.Context, userA, userB string) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterBookingsLocked(func(b persistence.Booking) bool {
		return (b.RequesterID == userA && b.RecipientID == userB) || (b.RequesterID == userB && b.RecipientID == userA)
	}), nil
}

func (s *Storage) filterBookingsLocked(match func(persistence.Booking) bool) []persistence.Booking {
	bookings := make([]persistence.Booking, 0)
	for _, booking := range s.bookings {
		if match(booking) {
			bookings = append(bookings, cloneBooking(booking))
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})
	return bookings
}

// --- ActivityRepository implementation ---

// CreateActivity stores a new activity entry.
func (s *Storage) CreateActivity(ctx context.Context, activity persistence.Activity) error {
	if activity.ID == "" || activity.RecipientID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activities[activity.ID]; ok {
		return persistence.ErrDuplicate
	}
	activity.ReferenceID = cloneString(activity.ReferenceID)
	s.activities[activity.ID] = activity
	return nil
}

// ListActivities returns the recipient's activities, newest first.
func (s *Storage) ListActivities(ctx context.Context, recipientID string) ([]persistence.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activities := make([]persistence.Activity, 0)
	for _, activity := range s.activities {
		if activity.RecipientID == recipientID {
			activity.ReferenceID = cloneString(activity.ReferenceID)
			activities = append(activities, activity)
		}
	}
	sort.Slice(activities, func(i, j int) bool {
		if activities[i].CreatedAt.Equal(activities[j].CreatedAt) {
			return activities[i].ID > activities[j].ID
		}
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
	return activities, nil
}

// MarkActivitiesRead marks every unread activity of the recipient as read.
func (s *Storage) MarkActivitiesRead(ctx context.Context, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for id, activity := range s.activities {
		if activity.RecipientID == recipientID && !activity.IsRead {
			activity.IsRead = true
			s.activities[id] = activity
			updated++
		}
	}
	return updated, nil
}

// --- PaymentRepository implementation ---

// CreatePayment stores a new payment.
func (s *Storage) CreatePayment(ctx context.Context, payment persistence.Payment) error {
	if payment.TxnRef == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[payment.TxnRef]; ok {
		return persistence.ErrDuplicate
	}
	payment.ProviderResponse = cloneString(payment.ProviderResponse)
	s.payments[payment.TxnRef] = payment
	return nil
}

// GetPayment retrieves a payment by transaction reference.
func (s *Storage) GetPayment(ctx context.Context, txnRef string) (persistence.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payment, ok := s.payments[txnRef]
	if !ok {
		return persistence.Payment{}, persistence.ErrNotFound
	}
	payment.ProviderResponse = cloneString(payment.ProviderResponse)
	return payment, nil
}

// TransitionPayment changes the payment status when it currently equals from.
func (s *Storage) TransitionPayment(ctx context.Context, txnRef, from, to string, providerResponse *string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[txnRef]
	if !ok {
		return persistence.ErrNotFound
	}
	if payment.Status != from {
		return persistence.ErrVersionConflict
	}
	payment.Status = to
	payment.ProviderResponse = cloneString(providerResponse)
	payment.UpdatedAt = at
	s.payments[txnRef] = payment
	return nil
}

// HasSuccessfulPayment reports whether the user completed a payment for the booking.
func (s *Storage) HasSuccessfulPayment(ctx context.Context, bookingID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, payment := range s.payments {
		if payment.BookingID == bookingID && payment.UserID == userID && payment.Status == persistence.PaymentStatusSuccess {
			return true, nil
		}
	}
	return false, nil
}

// --- MessageRepository implementation ---

// CreateMessage stores a chat message.
func (s *Storage) CreateMessage(ctx context.Context, message persistence.Message) error {
	if message.ID == "" || message.BookingID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[message.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.messages[message.ID] = message
	return nil
}

// ListMessages returns a booking's messages, oldest first.
func (s *Storage) ListMessages(ctx context.Context, bookingID string) ([]persistence.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]persistence.Message, 0)
	for _, message := range s.messages {
		if message.BookingID == bookingID {
			messages = append(messages, message)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

// --- ParticipantRepository implementation ---

// UpsertParticipant creates or replaces a participant profile, keeping any penalty.
func (s *Storage) UpsertParticipant(ctx context.Context, participant persistence.Participant) error {
	if participant.ID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	participant = cloneParticipant(participant)
	participant.PenalizedUntil = nil
	if current, ok := s.participants[participant.ID]; ok {
		participant.PenalizedUntil = cloneTime(current.PenalizedUntil)
	}
	s.participants[participant.ID] = participant
	return nil
}

// GetParticipant retrieves a participant profile.
func (s *Storage) GetParticipant(ctx context.Context, id string) (persistence.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participant, ok := s.participants[id]
	if !ok {
		return persistence.Participant{}, persistence.ErrNotFound
	}
	return cloneParticipant(participant), nil
}

// SetPenalty records a penalty expiry for the participant, creating a bare
// profile when none is cached yet.
func (s *Storage) SetPenalty(ctx context.Context, id string, until time.Time) error {
	if id == "" {
		return fmt.Errorf("memory: participant id is required: %w", persistence.ErrConstraintViolation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	participant := s.participants[id]
	participant.ID = id
	participant.PenalizedUntil = &until
	s.participants[id] = cloneParticipant(participant)
	return nil
}

func pairingKey(userA, userB string) string {
	return userA + "|" + userB
}

func clonePairing(pairing persistence.Pairing) persistence.Pairing {
	pairing.BookingID = cloneString(pairing.BookingID)
	return pairing
}

func cloneBooking(booking persistence.Booking) persistence.Booking {
	booking.RequesterAttended = cloneBool(booking.RequesterAttended)
	booking.RecipientAttended = cloneBool(booking.RecipientAttended)
	booking.RequesterWantsContact = cloneBool(booking.RequesterWantsContact)
	booking.RecipientWantsContact = cloneBool(booking.RecipientWantsContact)
	return booking
}

func cloneParticipant(participant persistence.Participant) persistence.Participant {
	participant.Latitude = cloneFloat(participant.Latitude)
	participant.Longitude = cloneFloat(participant.Longitude)
	participant.PenalizedUntil = cloneTime(participant.PenalizedUntil)
	return participant
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
