package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/persistence"
)

var (
	participantCounter uint64
	slotCounter        uint64
	bookingCounter     uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Day returns hour:minute UTC on the n-th day after ReferenceTime.
func Day(n, hour, minute int) time.Time {
	midnight := time.Date(referenceTime.Year(), referenceTime.Month(), referenceTime.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, n).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// -------------------------- Participant fixtures --------------------------

// ParticipantFixture represents a deterministic participant profile.
type ParticipantFixture struct {
	ID          string
	DisplayName string
	Email       string
	Latitude    *float64
	Longitude   *float64
	UpdatedAt   time.Time
}

// ParticipantOption configures the generated participant fixture.
type ParticipantOption func(*ParticipantFixture)

// NewParticipantFixture returns a deterministic participant with optional overrides.
func NewParticipantFixture(opts ...ParticipantOption) ParticipantFixture {
	idx := atomic.AddUint64(&participantCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := ParticipantFixture{
		ID:          id,
		DisplayName: fmt.Sprintf("User %03d", idx),
		Email:       fmt.Sprintf("%s@example.com", id),
		UpdatedAt:   referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithParticipantID overrides the generated participant ID.
func WithParticipantID(id string) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.ID = id
	}
}

// WithParticipantName overrides the generated display name.
func WithParticipantName(name string) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.DisplayName = name
	}
}

// WithParticipantLocation sets the participant coordinates.
func WithParticipantLocation(lat, lng float64) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.Latitude = &lat
		f.Longitude = &lng
	}
}

// Principal returns an application.Principal acting as the participant.
func (f ParticipantFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID}
}

// Input returns the fixture as an application.ParticipantInput.
func (f ParticipantFixture) Input() application.ParticipantInput {
	return application.ParticipantInput{
		DisplayName: f.DisplayName,
		Email:       f.Email,
		Latitude:    f.Latitude,
		Longitude:   f.Longitude,
	}
}

// Persistence returns the fixture as a persistence.Participant value.
func (f ParticipantFixture) Persistence() persistence.Participant {
	return persistence.Participant{
		ID:          f.ID,
		DisplayName: f.DisplayName,
		Email:       f.Email,
		Latitude:    f.Latitude,
		Longitude:   f.Longitude,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ------------------------------ Slot fixtures -----------------------------

// SlotFixture represents an availability window of Owner for Counterpart.
type SlotFixture struct {
	ID            string
	OwnerID       string
	CounterpartID string
	Start         time.Time
	End           time.Time
	CreatedAt     time.Time
}

// SlotOption configures the generated slot fixture.
type SlotOption func(*SlotFixture)

// NewSlotFixture returns a two hour slot on day one, 10:00 to 12:00.
func NewSlotFixture(ownerID, counterpartID string, opts ...SlotOption) SlotFixture {
	idx := atomic.AddUint64(&slotCounter, 1)
	fixture := SlotFixture{
		ID:            fmt.Sprintf("slot-%03d", idx),
		OwnerID:       ownerID,
		CounterpartID: counterpartID,
		Start:         Day(1, 10, 0),
		End:           Day(1, 12, 0),
		CreatedAt:     referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSlotWindow overrides the slot bounds.
func WithSlotWindow(start, end time.Time) SlotOption {
	return func(f *SlotFixture) {
		f.Start = start
		f.End = end
	}
}

// WithSlotID overrides the generated slot ID.
func WithSlotID(id string) SlotOption {
	return func(f *SlotFixture) {
		f.ID = id
	}
}

// Input returns the fixture as an application.SlotInput.
func (f SlotFixture) Input() application.SlotInput {
	return application.SlotInput{Start: f.Start, End: f.End}
}

// Persistence returns the fixture as a persistence.Slot value.
func (f SlotFixture) Persistence() persistence.Slot {
	return persistence.Slot{
		ID:            f.ID,
		OwnerID:       f.OwnerID,
		CounterpartID: f.CounterpartID,
		Start:         f.Start,
		End:           f.End,
		CreatedAt:     f.CreatedAt,
	}
}

// ---------------------------- Booking fixtures ----------------------------

// BookingFixture represents a deterministic booking record.
type BookingFixture struct {
	ID                 string
	RequesterID        string
	RecipientID        string
	Start              time.Time
	End                time.Time
	Venue              string
	Status             string
	RequesterConfirmed bool
	RecipientConfirmed bool
	Version            int64
	CreatedAt          time.Time
}

// BookingOption configures the generated booking fixture.
type BookingOption func(*BookingFixture)

// NewBookingFixture returns a PROPOSED ninety minute booking on day one.
func NewBookingFixture(requesterID, recipientID string, opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	fixture := BookingFixture{
		ID:          fmt.Sprintf("booking-%03d", idx),
		RequesterID: requesterID,
		RecipientID: recipientID,
		Start:       Day(1, 10, 0),
		End:         Day(1, 11, 30),
		Venue:       "Cafe - 1 Main St",
		Status:      persistence.BookingStatusProposed,
		Version:     1,
		CreatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBookingID overrides the generated booking ID.
func WithBookingID(id string) BookingOption {
	return func(f *BookingFixture) {
		f.ID = id
	}
}

// WithBookingWindow overrides the booking bounds.
func WithBookingWindow(start, end time.Time) BookingOption {
	return func(f *BookingFixture) {
		f.Start = start
		f.End = end
	}
}

// WithBookingConfirmed marks both sides confirmed.
func WithBookingConfirmed() BookingOption {
	return func(f *BookingFixture) {
		f.Status = persistence.BookingStatusConfirmed
		f.RequesterConfirmed = true
		f.RecipientConfirmed = true
	}
}

// Persistence returns the fixture as a persistence.Booking value.
func (f BookingFixture) Persistence() persistence.Booking {
	return persistence.Booking{
		ID:                 f.ID,
		RequesterID:        f.RequesterID,
		RecipientID:        f.RecipientID,
		Start:              f.Start,
		End:                f.End,
		Venue:              f.Venue,
		Status:             f.Status,
		RequesterConfirmed: f.RequesterConfirmed,
		RecipientConfirmed: f.RecipientConfirmed,
		Version:            f.Version,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.CreatedAt,
	}
}

// PairingFor returns a persistence pairing in the given status for the
// booking's participants.
func (f BookingFixture) PairingFor(status string) persistence.Pairing {
	userA, userB := persistence.PairKey(f.RequesterID, f.RecipientID)
	id := f.ID
	return persistence.Pairing{
		UserA:     userA,
		UserB:     userB,
		Status:    status,
		BookingID: &id,
		Version:   1,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}
