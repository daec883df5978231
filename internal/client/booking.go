// Package client keeps a participant's local view of their bookings in step
// with the server. Polling and realtime frames both feed one merge function,
// so the view converges no matter which path delivers a snapshot first.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/date-booking/internal/wire"
)

// Booking statuses as sent by the server.
const (
	StatusProposed  = "PROPOSED"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
)

// Booking is the canonical local form of a booking. Both server shapes
// normalize into it.
type Booking struct {
	ID                    string
	RequesterID           string
	RequesterName         string
	RecipientID           string
	RecipientName         string
	Start                 time.Time
	End                   time.Time
	Venue                 string
	Status                string
	RequesterConfirmed    bool
	RecipientConfirmed    bool
	RequesterAttended     *bool
	RecipientAttended     *bool
	RequesterWantsContact *bool
	RecipientWantsContact *bool
	ContactExchanged      bool
	PartnerContact        *wire.Contact
	Version               int64
	UpdatedAt             time.Time
}

// ConfirmedBy reports whether userID has confirmed.
func (b Booking) ConfirmedBy(userID string) bool {
	if b.RequesterID == userID {
		return b.RequesterConfirmed
	}
	return b.RecipientConfirmed
}

// ErrMalformedBooking is returned by Normalize for payloads without an id.
var ErrMalformedBooking = errors.New("client: malformed booking payload")

// shape holds the union of the flat and nested fields.
type shape struct {
	wire.Booking
	Requester *wire.Party `json:"requester"`
	Recipient *wire.Party `json:"recipient"`
}

// Normalize decodes either booking shape.
func Normalize(raw []byte) (Booking, error) {
	var s shape
	if err := json.Unmarshal(raw, &s); err != nil {
		return Booking{}, fmt.Errorf("%w: %v", ErrMalformedBooking, err)
	}
	if s.ID == "" {
		return Booking{}, ErrMalformedBooking
	}

	start, err := parseTimestamp(s.StartTime)
	if err != nil {
		return Booking{}, fmt.Errorf("%w: startTime: %v", ErrMalformedBooking, err)
	}
	end, err := parseTimestamp(s.EndTime)
	if err != nil {
		return Booking{}, fmt.Errorf("%w: endTime: %v", ErrMalformedBooking, err)
	}
	updated, err := parseTimestamp(s.UpdatedAt)
	if err != nil {
		return Booking{}, fmt.Errorf("%w: updatedAt: %v", ErrMalformedBooking, err)
	}

	b := Booking{
		ID:                    s.ID,
		RequesterID:           s.RequesterID,
		RequesterName:         s.RequesterName,
		RecipientID:           s.RecipientID,
		RecipientName:         s.RecipientName,
		Start:                 start,
		End:                   end,
		Venue:                 s.Venue,
		Status:                s.Status,
		RequesterConfirmed:    s.RequesterConfirmed,
		RecipientConfirmed:    s.RecipientConfirmed,
		RequesterAttended:     s.RequesterAttended,
		RecipientAttended:     s.RecipientAttended,
		RequesterWantsContact: s.RequesterWantsContact,
		RecipientWantsContact: s.RecipientWantsContact,
		ContactExchanged:      s.ContactExchanged,
		PartnerContact:        s.PartnerContact,
		Version:               s.Version,
		UpdatedAt:             updated,
	}
	if s.Requester != nil {
		b.RequesterID = s.Requester.ID
		b.RequesterName = s.Requester.Name
		b.RequesterConfirmed = s.Requester.Confirmed
		b.RequesterAttended = s.Requester.Attended
		b.RequesterWantsContact = s.Requester.WantsContact
	}
	if s.Recipient != nil {
		b.RecipientID = s.Recipient.ID
		b.RecipientName = s.Recipient.Name
		b.RecipientConfirmed = s.Recipient.Confirmed
		b.RecipientAttended = s.Recipient.Attended
		b.RecipientWantsContact = s.Recipient.WantsContact
	}
	return b, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// statusRank orders statuses so an equal-version snapshot never regresses.
func statusRank(status string) int {
	switch status {
	case StatusProposed:
		return 1
	case StatusConfirmed:
		return 2
	case StatusCancelled:
		return 3
	default:
		return 0
	}
}
