package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/date-booking/internal/chatgate"
	"github.com/example/date-booking/internal/persistence"
	"github.com/example/date-booking/internal/venue"
)

// Policy holds the tunable rules of the scheduling protocol.
type Policy struct {
	MinSlotDuration      time.Duration
	MaxScheduleWindow    time.Duration
	MinAvailabilitySlots int
	CancelPenalty        time.Duration
	Chat                 chatgate.Gate
	PaymentAmount        int64

	// PairingRegistrars may register pairings they are not part of.
	PairingRegistrars []string
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		MinSlotDuration:      90 * time.Minute,
		MaxScheduleWindow:    21 * 24 * time.Hour,
		MinAvailabilitySlots: 3,
		CancelPenalty:        24 * time.Hour,
		Chat:                 chatgate.Gate{UnlockBefore: 4 * time.Hour},
		PaymentAmount:        100000,
	}
}

// VenueRecommender suggests a meeting place for two participants.
type VenueRecommender interface {
	Recommend(ctx context.Context, a, b *venue.Point) (string, error)
}

// Dependencies wires the collaborators shared by every service.
type Dependencies struct {
	Repositories Repositories
	Policy       Policy
	Notifier     Notifier
	Venues       VenueRecommender
	Payments     PaymentGateway
	Locks        *PairLocker
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

func (d Dependencies) withDefaults() Dependencies {
	if d.IDGenerator == nil {
		d.IDGenerator = func() string { return "" }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Locks == nil {
		d.Locks = NewPairLocker()
	}
	if d.Policy.MinAvailabilitySlots <= 0 {
		d.Policy.MinAvailabilitySlots = DefaultPolicy().MinAvailabilitySlots
	}
	d.Notifier = defaultNotifier(d.Notifier)
	d.Logger = defaultLogger(d.Logger)
	return d
}

// recorder stores activity entries and pushes them on the activities topic.
// Failures are logged; the transition that produced them already happened.
type recorder struct {
	activities  ActivityRepository
	notifier    Notifier
	idGenerator func() string
	now         func() time.Time
}

func newRecorder(deps Dependencies) recorder {
	return recorder{
		activities:  deps.Repositories.Activities,
		notifier:    deps.Notifier,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
	}
}

func (r recorder) record(ctx context.Context, logger *slog.Logger, recipientID string, kind ActivityType, content string, referenceID *string) {
	activity := Activity{
		ID:          r.idGenerator(),
		RecipientID: recipientID,
		Type:        kind,
		Content:     content,
		ReferenceID: referenceID,
		CreatedAt:   r.now(),
	}
	if r.activities != nil {
		if err := r.activities.CreateActivity(ctx, activity); err != nil {
			logger.WarnContext(ctx, "failed to record activity", "recipient_id", recipientID, "activity_type", string(kind), "error", err)
			return
		}
	}
	r.notifier.Publish(ctx, Event{UserID: recipientID, Topic: TopicActivities, Type: kind, Payload: activity})
}

// publishBooking pushes the booking to both participants as the same view
// the detail endpoint returns to each of them.
func publishBooking(ctx context.Context, notifier Notifier, views bookingViews, kind ActivityType, booking Booking) {
	for _, userID := range []string{booking.RequesterID, booking.RecipientID} {
		notifier.Publish(ctx, Event{UserID: userID, Topic: TopicScheduling, Type: kind, Payload: views.view(ctx, userID, booking)})
	}
}

// bookingViews renders bookings for one viewer: their own feedback answers,
// both display names, and the counterpart's contact once it is exchanged.
type bookingViews struct {
	participants ParticipantRepository
}

func (v bookingViews) view(ctx context.Context, viewerID string, booking Booking) BookingView {
	view := BookingView{
		Booking:       booking.RedactFor(viewerID),
		RequesterName: v.name(ctx, booking.RequesterID),
		RecipientName: v.name(ctx, booking.RecipientID),
	}
	if booking.ContactExchanged {
		if contact, err := v.contact(ctx, booking.Counterpart(viewerID)); err == nil {
			view.PartnerContact = &contact
		}
	}
	return view
}

func (v bookingViews) name(ctx context.Context, userID string) string {
	if v.participants == nil {
		return ""
	}
	participant, err := v.participants.GetParticipant(ctx, userID)
	if err != nil {
		return ""
	}
	return participant.DisplayName
}

func (v bookingViews) contact(ctx context.Context, userID string) (ContactDetails, error) {
	if v.participants == nil {
		return ContactDetails{UserID: userID}, nil
	}
	participant, err := v.participants.GetParticipant(ctx, userID)
	if err != nil {
		if isNotFoundError(mapRepoError(err)) {
			return ContactDetails{UserID: userID}, nil
		}
		return ContactDetails{}, mapRepoError(err)
	}
	return ContactDetails{UserID: userID, DisplayName: participant.DisplayName, Email: participant.Email}, nil
}

func publishPairing(ctx context.Context, notifier Notifier, topic Topic, kind ActivityType, pairing Pairing) {
	for _, userID := range []string{pairing.UserA, pairing.UserB} {
		notifier.Publish(ctx, Event{UserID: userID, Topic: topic, Type: kind, Payload: pairing})
	}
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrVersionConflict), errors.Is(err, persistence.ErrDuplicate):
		return ErrConflict
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("record", "violates a storage constraint")
		return vErr
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("record", "references a missing record")
		return vErr
	}
	return err
}

func stringPtr(s string) *string {
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}
