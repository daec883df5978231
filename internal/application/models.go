package application

import "time"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
}

// PairingStatus tracks which side of a pairing still has to act.
type PairingStatus string

const (
	PairingWaitingForSchedule PairingStatus = "WAITING_FOR_SCHEDULE"
	PairingPendingAAvail      PairingStatus = "PENDING_A_AVAIL"
	PairingPendingBAvail      PairingStatus = "PENDING_B_AVAIL"
	PairingProposed           PairingStatus = "PROPOSED"
	PairingScheduled          PairingStatus = "SCHEDULED"
	PairingMatchingFailed     PairingStatus = "MATCHING_FAILED"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingProposed  BookingStatus = "PROPOSED"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// ActivityType classifies feed entries and realtime events.
type ActivityType string

const (
	ActivityMatch              ActivityType = "MATCH"
	ActivityLike               ActivityType = "LIKE"
	ActivityMessageNew         ActivityType = "MESSAGE_NEW"
	ActivityBookingProposed    ActivityType = "BOOKING_PROPOSED"
	ActivityBookingUpdate      ActivityType = "BOOKING_UPDATE"
	ActivityMatchingFailed     ActivityType = "MATCHING_FAILED"
	ActivityMatchStatusUpdate  ActivityType = "MATCH_STATUS_UPDATE"
	ActivitySchedulingCanceled ActivityType = "SCHEDULING_CANCELED"
	ActivityPenaltyNotice      ActivityType = "PENALTY_NOTICE"
	ActivityContactExchanged   ActivityType = "CONTACT_EXCHANGED"
)

// PaymentStatus is the state of a provider transaction.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Slot is an availability window an owner declared for one counterpart.
type Slot struct {
	ID            string
	OwnerID       string
	CounterpartID string
	Start         time.Time
	End           time.Time
	CreatedAt     time.Time
}

// SlotInput captures caller provided slot bounds.
type SlotInput struct {
	Start time.Time
	End   time.Time
}

// AddSlotParams wraps the data required to add a slot.
type AddSlotParams struct {
	Principal     Principal
	CounterpartID string
	Input         SlotInput
}

// Pairing is the scheduling relationship of two mutually liked users.
// UserA is always the lexicographically smaller identifier.
type Pairing struct {
	UserA      string
	UserB      string
	Status     PairingStatus
	ASubmitted bool
	BSubmitted bool
	BookingID  *string
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Includes reports whether userID is one side of the pairing.
func (p Pairing) Includes(userID string) bool {
	return userID != "" && (p.UserA == userID || p.UserB == userID)
}

// Counterpart returns the other side of the pairing.
func (p Pairing) Counterpart(userID string) string {
	if p.UserA == userID {
		return p.UserB
	}
	return p.UserA
}

// Submitted reports whether userID has already signalled readiness.
func (p Pairing) Submitted(userID string) bool {
	if p.UserA == userID {
		return p.ASubmitted
	}
	return p.BSubmitted
}

// LinkedTo reports whether the pairing currently points at bookingID.
func (p Pairing) LinkedTo(bookingID string) bool {
	return p.BookingID != nil && *p.BookingID == bookingID
}

// Reset returns the pairing waiting for fresh availability from both sides.
func (p Pairing) Reset(now time.Time) Pairing {
	p.Status = PairingWaitingForSchedule
	p.ASubmitted = false
	p.BSubmitted = false
	p.BookingID = nil
	p.UpdatedAt = now
	return p
}

// SubmitResult is the outcome of an availability submission. Booking is nil
// while the pairing is still waiting for the other side, and after a failed
// matching pass.
type SubmitResult struct {
	Pairing Pairing
	Booking *Booking
}

// Waiting reports whether the submission still waits for the counterpart.
func (r SubmitResult) Waiting() bool {
	return r.Pairing.Status == PairingPendingAAvail || r.Pairing.Status == PairingPendingBAvail
}

// Booking is a proposed or confirmed meeting between two participants.
type Booking struct {
	ID                    string
	RequesterID           string
	RecipientID           string
	Start                 time.Time
	End                   time.Time
	Venue                 string
	Status                BookingStatus
	RequesterConfirmed    bool
	RecipientConfirmed    bool
	RequesterAttended     *bool
	RecipientAttended     *bool
	RequesterWantsContact *bool
	RecipientWantsContact *bool
	ContactExchanged      bool
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Includes reports whether userID participates in the booking.
func (b Booking) Includes(userID string) bool {
	return userID != "" && (b.RequesterID == userID || b.RecipientID == userID)
}

// Counterpart returns the other participant.
func (b Booking) Counterpart(userID string) string {
	if b.RequesterID == userID {
		return b.RecipientID
	}
	return b.RequesterID
}

// ConfirmedBy reports whether userID has confirmed.
func (b Booking) ConfirmedBy(userID string) bool {
	if b.RequesterID == userID {
		return b.RequesterConfirmed
	}
	return b.RecipientConfirmed
}

// FeedbackComplete reports whether both sides answered the post-date survey.
func (b Booking) FeedbackComplete() bool {
	return b.RequesterAttended != nil && b.RecipientAttended != nil &&
		b.RequesterWantsContact != nil && b.RecipientWantsContact != nil
}

// RedactFor hides the counterpart's feedback answers from viewerID.
func (b Booking) RedactFor(viewerID string) Booking {
	switch viewerID {
	case b.RequesterID:
		b.RecipientAttended = nil
		b.RecipientWantsContact = nil
	case b.RecipientID:
		b.RequesterAttended = nil
		b.RequesterWantsContact = nil
	default:
		b.RequesterAttended, b.RecipientAttended = nil, nil
		b.RequesterWantsContact, b.RecipientWantsContact = nil, nil
	}
	return b
}

// BookingView is a booking as shown to one of its participants.
type BookingView struct {
	Booking        Booking
	RequesterName  string
	RecipientName  string
	PartnerContact *ContactDetails
}

// FeedbackParams wraps a post-date survey answer.
type FeedbackParams struct {
	Principal    Principal
	BookingID    string
	Attended     bool
	WantsContact bool
}

// ContactDetails is the counterpart information revealed after a mutual opt-in.
type ContactDetails struct {
	UserID      string
	DisplayName string
	Email       string
}

// Activity is a feed entry addressed to one user.
type Activity struct {
	ID          string
	RecipientID string
	Type        ActivityType
	Content     string
	ReferenceID *string
	IsRead      bool
	CreatedAt   time.Time
}

// Payment is a provider transaction started by a booking participant.
type Payment struct {
	TxnRef           string
	BookingID        string
	UserID           string
	Amount           int64
	Status           PaymentStatus
	ProviderResponse *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PaymentParams wraps a request for a provider redirect URL.
type PaymentParams struct {
	Principal Principal
	BookingID string
	ClientIP  string
}

// PaymentRedirect is the provider URL the participant is sent to.
type PaymentRedirect struct {
	TxnRef string
	URL    string
}

// PaymentVerification is the answer to a provider callback or return check.
type PaymentVerification struct {
	Code      string
	Message   string
	TxnRef    string
	BookingID string
	Status    PaymentStatus
}

// Message is a chat line between booking participants.
type Message struct {
	ID          string
	BookingID   string
	SenderID    string
	RecipientID string
	Content     string
	CreatedAt   time.Time
}

// SendMessageParams wraps a chat message submission.
type SendMessageParams struct {
	Principal Principal
	BookingID string
	Content   string
}

// ChatStatus is the derived chat gate for a booking at one instant.
type ChatStatus struct {
	BookingID string
	CanChat   bool
	UnlockAt  time.Time
	LockAt    *time.Time
	Remaining time.Duration
}

// Participant is the cached profile of a user.
type Participant struct {
	ID             string
	DisplayName    string
	Email          string
	Latitude       *float64
	Longitude      *float64
	PenalizedUntil *time.Time
	UpdatedAt      time.Time
}

// ParticipantInput captures caller provided profile fields.
type ParticipantInput struct {
	DisplayName string
	Email       string
	Latitude    *float64
	Longitude   *float64
}
