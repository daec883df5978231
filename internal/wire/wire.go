// Package wire defines the JSON representations exchanged with clients over
// HTTP and the realtime channel, and converts application values into them.
//
// Bookings have two shapes. Detail endpoints and realtime frames use the flat
// Booking; list endpoints use NestedBooking, which groups per-side fields
// under requester and recipient. Clients normalize both into one value.
package wire

import (
	"encoding/json"
	"time"

	"github.com/example/date-booking/internal/application"
)

// Booking is the flat booking representation.
type Booking struct {
	ID                    string   `json:"id"`
	RequesterID           string   `json:"requesterId"`
	RequesterName         string   `json:"requesterName,omitempty"`
	RecipientID           string   `json:"recipientId"`
	RecipientName         string   `json:"recipientName,omitempty"`
	StartTime             string   `json:"startTime"`
	EndTime               string   `json:"endTime"`
	Venue                 string   `json:"venue"`
	Status                string   `json:"status"`
	RequesterConfirmed    bool     `json:"requesterConfirmed"`
	RecipientConfirmed    bool     `json:"recipientConfirmed"`
	RequesterAttended     *bool    `json:"requesterAttended"`
	RecipientAttended     *bool    `json:"recipientAttended"`
	RequesterWantsContact *bool    `json:"requesterWantsContact"`
	RecipientWantsContact *bool    `json:"recipientWantsContact"`
	ContactExchanged      bool     `json:"contactExchanged"`
	PartnerContact        *Contact `json:"partnerContact,omitempty"`
	Version               int64    `json:"version"`
	UpdatedAt             string   `json:"updatedAt"`
}

// Party is one side of a NestedBooking.
type Party struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Confirmed    bool   `json:"confirmed"`
	Attended     *bool  `json:"attended"`
	WantsContact *bool  `json:"wantsContact"`
}

// NestedBooking is the list representation of a booking.
type NestedBooking struct {
	ID               string   `json:"id"`
	Requester        Party    `json:"requester"`
	Recipient        Party    `json:"recipient"`
	StartTime        string   `json:"startTime"`
	EndTime          string   `json:"endTime"`
	Venue            string   `json:"venue"`
	Status           string   `json:"status"`
	ContactExchanged bool     `json:"contactExchanged"`
	PartnerContact   *Contact `json:"partnerContact,omitempty"`
	Version          int64    `json:"version"`
	UpdatedAt        string   `json:"updatedAt"`
}

// Contact is a revealed counterpart.
type Contact struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

type Slot struct {
	ID            string `json:"id"`
	OwnerID       string `json:"ownerId"`
	CounterpartID string `json:"counterpartId"`
	Start         string `json:"start"`
	End           string `json:"end"`
	CreatedAt     string `json:"createdAt"`
}

type Pairing struct {
	UserA      string  `json:"userA"`
	UserB      string  `json:"userB"`
	Status     string  `json:"status"`
	ASubmitted bool    `json:"aSubmitted"`
	BSubmitted bool    `json:"bSubmitted"`
	BookingID  *string `json:"bookingId,omitempty"`
	Version    int64   `json:"version"`
	UpdatedAt  string  `json:"updatedAt"`
}

// SubmitResult answers an availability submission. Booking is absent while
// the pairing waits for the other side or after a failed match.
type SubmitResult struct {
	Status  string   `json:"status"`
	Pairing Pairing  `json:"pairing"`
	Booking *Booking `json:"booking,omitempty"`
}

type Activity struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Content     string  `json:"content"`
	ReferenceID *string `json:"referenceId,omitempty"`
	IsRead      bool    `json:"isRead"`
	CreatedAt   string  `json:"createdAt"`
}

type Message struct {
	ID          string `json:"id"`
	BookingID   string `json:"bookingId"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
	CreatedAt   string `json:"createdAt"`
}

type ChatStatus struct {
	BookingID        string  `json:"bookingId"`
	CanChat          bool    `json:"canChat"`
	UnlockAt         string  `json:"unlockAt"`
	LockAt           *string `json:"lockAt,omitempty"`
	RemainingSeconds int64   `json:"remainingSeconds"`
}

type Participant struct {
	ID             string   `json:"id"`
	DisplayName    string   `json:"displayName"`
	Email          string   `json:"email,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	PenalizedUntil *string  `json:"penalizedUntil,omitempty"`
}

type PaymentRedirect struct {
	TxnRef     string `json:"txnRef"`
	PaymentURL string `json:"paymentUrl"`
}

// PaymentAnswer is the merchant response to a provider callback.
type PaymentAnswer struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

type PaymentStatus struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	TxnRef    string `json:"txnRef,omitempty"`
	BookingID string `json:"bookingId,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Code     string            `json:"code,omitempty"`
	Message  string            `json:"message"`
	Errors   map[string]string `json:"errors,omitempty"`
	Have     *int              `json:"have,omitempty"`
	Required *int              `json:"required,omitempty"`
	UnlockAt *string           `json:"unlockAt,omitempty"`
	Until    *string           `json:"until,omitempty"`
}

// Frame is one realtime message in either direction.
type Frame struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client frame types.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
)

// Timestamp renders t in RFC 3339 UTC with nanoseconds. Zero renders empty.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func timestampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := Timestamp(*t)
	return &s
}

// FromBooking converts a booking without participant names.
func FromBooking(b application.Booking) Booking {
	return Booking{
		ID:                    b.ID,
		RequesterID:           b.RequesterID,
		RecipientID:           b.RecipientID,
		StartTime:             Timestamp(b.Start),
		EndTime:               Timestamp(b.End),
		Venue:                 b.Venue,
		Status:                string(b.Status),
		RequesterConfirmed:    b.RequesterConfirmed,
		RecipientConfirmed:    b.RecipientConfirmed,
		RequesterAttended:     b.RequesterAttended,
		RecipientAttended:     b.RecipientAttended,
		RequesterWantsContact: b.RequesterWantsContact,
		RecipientWantsContact: b.RecipientWantsContact,
		ContactExchanged:      b.ContactExchanged,
		Version:               b.Version,
		UpdatedAt:             Timestamp(b.UpdatedAt),
	}
}

// FromBookingView converts a view into the flat shape.
func FromBookingView(view application.BookingView) Booking {
	out := FromBooking(view.Booking)
	out.RequesterName = view.RequesterName
	out.RecipientName = view.RecipientName
	out.PartnerContact = fromContactPtr(view.PartnerContact)
	return out
}

// NestedFromBookingView converts a view into the list shape.
func NestedFromBookingView(view application.BookingView) NestedBooking {
	b := view.Booking
	return NestedBooking{
		ID: b.ID,
		Requester: Party{
			ID:           b.RequesterID,
			Name:         view.RequesterName,
			Confirmed:    b.RequesterConfirmed,
			Attended:     b.RequesterAttended,
			WantsContact: b.RequesterWantsContact,
		},
		Recipient: Party{
			ID:           b.RecipientID,
			Name:         view.RecipientName,
			Confirmed:    b.RecipientConfirmed,
			Attended:     b.RecipientAttended,
			WantsContact: b.RecipientWantsContact,
		},
		StartTime:        Timestamp(b.Start),
		EndTime:          Timestamp(b.End),
		Venue:            b.Venue,
		Status:           string(b.Status),
		ContactExchanged: b.ContactExchanged,
		PartnerContact:   fromContactPtr(view.PartnerContact),
		Version:          b.Version,
		UpdatedAt:        Timestamp(b.UpdatedAt),
	}
}

func FromContact(c application.ContactDetails) Contact {
	return Contact{UserID: c.UserID, DisplayName: c.DisplayName, Email: c.Email}
}

func fromContactPtr(c *application.ContactDetails) *Contact {
	if c == nil {
		return nil
	}
	out := FromContact(*c)
	return &out
}

func FromSlot(s application.Slot) Slot {
	return Slot{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		CounterpartID: s.CounterpartID,
		Start:         Timestamp(s.Start),
		End:           Timestamp(s.End),
		CreatedAt:     Timestamp(s.CreatedAt),
	}
}

func FromSlots(slots []application.Slot) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		out = append(out, FromSlot(s))
	}
	return out
}

func FromPairing(p application.Pairing) Pairing {
	return Pairing{
		UserA:      p.UserA,
		UserB:      p.UserB,
		Status:     string(p.Status),
		ASubmitted: p.ASubmitted,
		BSubmitted: p.BSubmitted,
		BookingID:  p.BookingID,
		Version:    p.Version,
		UpdatedAt:  Timestamp(p.UpdatedAt),
	}
}

func FromPairings(pairings []application.Pairing) []Pairing {
	out := make([]Pairing, 0, len(pairings))
	for _, p := range pairings {
		out = append(out, FromPairing(p))
	}
	return out
}

// FromSubmitResult reports PENDING while waiting, otherwise the pairing status.
func FromSubmitResult(r application.SubmitResult) SubmitResult {
	out := SubmitResult{Status: string(r.Pairing.Status), Pairing: FromPairing(r.Pairing)}
	if r.Waiting() {
		out.Status = "PENDING"
	}
	if r.Booking != nil {
		b := FromBooking(*r.Booking)
		out.Booking = &b
	}
	return out
}

func FromActivity(a application.Activity) Activity {
	return Activity{
		ID:          a.ID,
		Type:        string(a.Type),
		Content:     a.Content,
		ReferenceID: a.ReferenceID,
		IsRead:      a.IsRead,
		CreatedAt:   Timestamp(a.CreatedAt),
	}
}

func FromActivities(activities []application.Activity) []Activity {
	out := make([]Activity, 0, len(activities))
	for _, a := range activities {
		out = append(out, FromActivity(a))
	}
	return out
}

func FromMessage(m application.Message) Message {
	return Message{
		ID:          m.ID,
		BookingID:   m.BookingID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		CreatedAt:   Timestamp(m.CreatedAt),
	}
}

func FromMessages(messages []application.Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, FromMessage(m))
	}
	return out
}

func FromChatStatus(s application.ChatStatus) ChatStatus {
	return ChatStatus{
		BookingID:        s.BookingID,
		CanChat:          s.CanChat,
		UnlockAt:         Timestamp(s.UnlockAt),
		LockAt:           timestampPtr(s.LockAt),
		RemainingSeconds: int64((s.Remaining + time.Second - 1) / time.Second),
	}
}

func FromParticipant(p application.Participant) Participant {
	return Participant{
		ID:             p.ID,
		DisplayName:    p.DisplayName,
		Email:          p.Email,
		Latitude:       p.Latitude,
		Longitude:      p.Longitude,
		PenalizedUntil: timestampPtr(p.PenalizedUntil),
	}
}

func FromPaymentVerification(v application.PaymentVerification) PaymentStatus {
	return PaymentStatus{
		Code:      v.Code,
		Message:   v.Message,
		TxnRef:    v.TxnRef,
		BookingID: v.BookingID,
		Status:    string(v.Status),
	}
}

// Payload converts an application event payload into its wire form.
// Unknown payloads are returned unchanged.
func Payload(payload any) any {
	switch v := payload.(type) {
	case application.BookingView:
		return FromBookingView(v)
	case application.Booking:
		return FromBooking(v)
	case application.Pairing:
		return FromPairing(v)
	case application.Activity:
		return FromActivity(v)
	case application.Message:
		return FromMessage(v)
	default:
		return payload
	}
}

// EventFrame encodes an application event as a server frame.
func EventFrame(event application.Event) (Frame, error) {
	raw, err := json.Marshal(Payload(event.Payload))
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: string(event.Type), Topic: string(event.Topic), Payload: raw}, nil
}
