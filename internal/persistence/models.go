package persistence

import "time"

// Slot is an availability window declared by its owner for one counterpart.
type Slot struct {
	ID            string
	OwnerID       string
	CounterpartID string
	Start         time.Time
	End           time.Time
	CreatedAt     time.Time
}

// Pairing tracks scheduling progress for two mutually liked users. UserA is
// always the lexicographically smaller identifier.
type Pairing struct {
	UserA      string
	UserB      string
	Status     string
	ASubmitted bool
	BSubmitted bool
	BookingID  *string
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Booking is a proposed or confirmed meeting between two participants.
type Booking struct {
	ID                    string
	RequesterID           string
	RecipientID           string
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
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Activity is a feed entry addressed to a single user.
type Activity struct {
	ID          string
	RecipientID string
	Type        string
	Content     string
	ReferenceID *string
	IsRead      bool
	CreatedAt   time.Time
}

// Payment records a provider transaction started by one booking participant.
type Payment struct {
	TxnRef           string
	BookingID        string
	UserID           string
	Amount           int64
	Status           string
	ProviderResponse *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Message is a chat line exchanged between the participants of a booking.
type Message struct {
	ID          string
	BookingID   string
	SenderID    string
	RecipientID string
	Content     string
	CreatedAt   time.Time
}

// Participant is the locally cached profile of a user.
type Participant struct {
	ID             string
	DisplayName    string
	Email          string
	Latitude       *float64
	Longitude      *float64
	PenalizedUntil *time.Time
	UpdatedAt      time.Time
}
