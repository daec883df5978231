package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/example/date-booking/internal/matching"
	"github.com/example/date-booking/internal/persistence"
	"github.com/example/date-booking/internal/venue"
)

// MatchingService owns pairing state and turns two submitted availability
// sets into a booking proposal.
type MatchingService struct {
	repos       Repositories
	policy      Policy
	notifier    Notifier
	venues      VenueRecommender
	locks       *PairLocker
	recorder    recorder
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewMatchingService wires dependencies for pairing and matching operations.
func NewMatchingService(deps Dependencies) *MatchingService {
	deps = deps.withDefaults()
	return &MatchingService{
		repos:       deps.Repositories,
		policy:      deps.Policy,
		notifier:    deps.Notifier,
		venues:      deps.Venues,
		locks:       deps.Locks,
		recorder:    newRecorder(deps),
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		logger:      deps.Logger,
	}
}

func (s *MatchingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MatchingService", operation, attrs...)
}

// RegisterPairing records that two users liked each other. The principal is
// either one of the two users or a configured pairing registrar such as the
// match discovery service. Registering an existing pairing returns it
// unchanged.
func (s *MatchingService) RegisterPairing(ctx context.Context, principal Principal, userA, userB string) (pairing Pairing, err error) {
	if s == nil {
		err = fmt.Errorf("MatchingService is nil")
		return
	}
	if s.repos.Pairings == nil {
		err = fmt.Errorf("pairing repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "RegisterPairing", "principal_id", principal.UserID, "user_a", userA, "user_b", userB)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register pairing", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("pairing_status", string(pairing.Status)).InfoContext(ctx, "pairing registered")
	}()

	vErr := &ValidationError{}
	if userA == "" {
		vErr.add("userA", "userA is required")
	}
	if userB == "" {
		vErr.add("userB", "userB is required")
	}
	if userA != "" && userA == userB {
		vErr.add("userB", "a user cannot be paired with themselves")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if principal.UserID != userA && principal.UserID != userB && !slices.Contains(s.policy.PairingRegistrars, principal.UserID) {
		err = ErrPermission
		return
	}

	a, b := persistence.PairKey(userA, userB)
	unlock := s.locks.Lock(a, b)
	defer unlock()

	existing, getErr := s.repos.Pairings.GetPairing(ctx, a, b)
	if getErr == nil {
		pairing = existing
		return
	}
	if !errors.Is(getErr, persistence.ErrNotFound) {
		err = mapRepoError(getErr)
		return
	}

	now := s.now()
	candidate := Pairing{
		UserA:     a,
		UserB:     b,
		Status:    PairingWaitingForSchedule,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if createErr := s.repos.Pairings.CreatePairing(ctx, candidate); createErr != nil {
		if errors.Is(createErr, persistence.ErrDuplicate) {
			pairing, err = s.getPairing(ctx, a, b)
			return
		}
		err = mapRepoError(createErr)
		return
	}
	pairing = candidate

	publishPairing(ctx, s.notifier, TopicMatches, ActivityMatch, pairing)
	s.recorder.record(ctx, logger, a, ActivityMatch, "You matched with "+s.displayName(ctx, b)+"! Pick your availability.", nil)
	s.recorder.record(ctx, logger, b, ActivityMatch, "You matched with "+s.displayName(ctx, a)+"! Pick your availability.", nil)
	return
}

// GetPairingStatus returns the pairing between the principal and counterpartID.
func (s *MatchingService) GetPairingStatus(ctx context.Context, principal Principal, counterpartID string) (pairing Pairing, err error) {
	if s == nil {
		err = fmt.Errorf("MatchingService is nil")
		return
	}
	if s.repos.Pairings == nil {
		err = fmt.Errorf("pairing repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "GetPairingStatus", "principal_id", principal.UserID, "counterpart_id", counterpartID)
	defer func() {
		if err != nil && !isNotFoundError(err) {
			logger.ErrorContext(ctx, "failed to get pairing", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	pairing, err = s.getPairing(ctx, principal.UserID, counterpartID)
	return
}

// ListPairings returns every pairing of the principal, most recently updated first.
func (s *MatchingService) ListPairings(ctx context.Context, principal Principal) (pairings []Pairing, err error) {
	if s == nil {
		err = fmt.Errorf("MatchingService is nil")
		return
	}
	if s.repos.Pairings == nil {
		err = fmt.Errorf("pairing repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListPairings", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list pairings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(pairings)).InfoContext(ctx, "pairings listed")
	}()

	listed, listErr := s.repos.Pairings.ListPairingsForUser(ctx, principal.UserID)
	if listErr != nil {
		err = mapRepoError(listErr)
		return
	}
	pairings = listed
	return
}

// Submit marks the principal ready to be matched with counterpartID. Once
// both sides have submitted it runs the overlap search over the slots stored
// at that moment and either proposes a booking or resets the pair.
func (s *MatchingService) Submit(ctx context.Context, principal Principal, counterpartID string) (result SubmitResult, err error) {
	if s == nil {
		err = fmt.Errorf("MatchingService is nil")
		return
	}
	if s.repos.Pairings == nil || s.repos.Slots == nil || s.repos.Bookings == nil {
		err = fmt.Errorf("matching repositories not configured")
		return
	}

	actor := principal.UserID
	logger := s.loggerWith(ctx, "Submit", "principal_id", actor, "counterpart_id", counterpartID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to submit availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		attrs := []any{"pairing_status", string(result.Pairing.Status)}
		if result.Booking != nil {
			attrs = append(attrs, "booking_id", result.Booking.ID)
		}
		logger.With(attrs...).InfoContext(ctx, "availability submitted")
	}()

	unlock := s.locks.Lock(actor, counterpartID)
	defer unlock()

	now := s.now()
	if err = s.ensureNotPenalized(ctx, actor, now); err != nil {
		return
	}

	pairing, err := s.getPairing(ctx, actor, counterpartID)
	if err != nil {
		return
	}

	if pairing.Status == PairingProposed || pairing.Status == PairingScheduled {
		if pairing, err = s.releaseCancelled(ctx, logger, pairing); err != nil {
			return
		}
	}

	switch pairing.Status {
	case PairingScheduled:
		err = ErrConflict
		return
	case PairingProposed:
		if pairing.BookingID == nil {
			err = ErrConflict
			return
		}
		booking, getErr := s.repos.Bookings.GetBooking(ctx, *pairing.BookingID)
		if getErr != nil {
			err = mapRepoError(getErr)
			return
		}
		booking = booking.RedactFor(actor)
		result = SubmitResult{Pairing: pairing, Booking: &booking}
		return
	}

	own, listErr := s.repos.Slots.ListSlots(ctx, actor, counterpartID)
	if listErr != nil {
		err = mapRepoError(listErr)
		return
	}
	if len(own) < s.policy.MinAvailabilitySlots {
		err = &InsufficientSlotsError{Have: len(own), Required: s.policy.MinAvailabilitySlots}
		return
	}

	updated := pairing
	if updated.UserA == actor {
		updated.ASubmitted = true
	} else {
		updated.BSubmitted = true
	}
	updated.UpdatedAt = now

	if !updated.ASubmitted || !updated.BSubmitted {
		if updated.ASubmitted {
			updated.Status = PairingPendingBAvail
		} else {
			updated.Status = PairingPendingAAvail
		}
		if err = s.savePairing(ctx, &updated, pairing.Version); err != nil {
			return
		}
		result = SubmitResult{Pairing: updated}
		publishPairing(ctx, s.notifier, TopicMatches, ActivityMatchStatusUpdate, updated)
		s.recorder.record(ctx, logger, counterpartID, ActivityMatchStatusUpdate,
			s.displayName(ctx, actor)+" has shared their availability. Add yours to find a time.", nil)
		return
	}

	result, err = s.match(ctx, logger, pairing, updated, actor, counterpartID, own)
	return
}

func (s *MatchingService) match(ctx context.Context, logger *slog.Logger, original, updated Pairing, requesterID, recipientID string, requesterSlots []Slot) (SubmitResult, error) {
	recipientSlots, err := s.repos.Slots.ListSlots(ctx, recipientID, requesterID)
	if err != nil {
		return SubmitResult{}, mapRepoError(err)
	}
	busy, err := s.busyIntervals(ctx, requesterID, recipientID)
	if err != nil {
		return SubmitResult{}, err
	}

	window, found := matching.FindEarliest(toMatchingSlots(requesterSlots), toMatchingSlots(recipientSlots), s.policy.MinSlotDuration, busy)
	if !found {
		return s.failMatching(ctx, logger, original, updated)
	}

	label, err := s.recommendVenue(ctx, requesterID, recipientID)
	if err != nil {
		return SubmitResult{}, err
	}

	now := s.now()
	booking := Booking{
		ID:          s.idGenerator(),
		RequesterID: requesterID,
		RecipientID: recipientID,
		Start:       window.Start,
		End:         window.End,
		Venue:       label,
		Status:      BookingProposed,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repos.Bookings.CreateBooking(ctx, booking); err != nil {
		return SubmitResult{}, mapRepoError(err)
	}

	updated.Status = PairingProposed
	updated.BookingID = stringPtr(booking.ID)
	if err := s.savePairing(ctx, &updated, original.Version); err != nil {
		s.abandonBooking(ctx, logger, booking)
		return SubmitResult{}, err
	}

	publishBooking(ctx, s.notifier, bookingViews{participants: s.repos.Participants}, ActivityBookingProposed, booking)
	publishPairing(ctx, s.notifier, TopicMatches, ActivityBookingProposed, updated)
	s.recorder.record(ctx, logger, requesterID, ActivityBookingProposed, "Found a matching date time with "+s.displayName(ctx, recipientID)+"!", stringPtr(booking.ID))
	s.recorder.record(ctx, logger, recipientID, ActivityBookingProposed, "Found a matching date time with "+s.displayName(ctx, requesterID)+"!", stringPtr(booking.ID))

	view := booking.RedactFor(requesterID)
	return SubmitResult{Pairing: updated, Booking: &view}, nil
}

func (s *MatchingService) failMatching(ctx context.Context, logger *slog.Logger, original, updated Pairing) (SubmitResult, error) {
	if err := s.repos.Slots.DeleteSlotsForPair(ctx, updated.UserA, updated.UserB); err != nil {
		return SubmitResult{}, mapRepoError(err)
	}

	updated.Status = PairingMatchingFailed
	updated.ASubmitted = false
	updated.BSubmitted = false
	updated.BookingID = nil
	if err := s.savePairing(ctx, &updated, original.Version); err != nil {
		return SubmitResult{}, err
	}

	publishPairing(ctx, s.notifier, TopicScheduling, ActivityMatchingFailed, updated)
	for _, userID := range []string{updated.UserA, updated.UserB} {
		s.recorder.record(ctx, logger, userID, ActivityMatchingFailed, "No common time slot found. Please pick your availability again!", nil)
	}
	return SubmitResult{Pairing: updated}, nil
}

// releaseCancelled resets a pairing that still points at a cancelled or
// missing booking so the pair can schedule again.
func (s *MatchingService) releaseCancelled(ctx context.Context, logger *slog.Logger, pairing Pairing) (Pairing, error) {
	if pairing.BookingID == nil {
		return pairing, nil
	}
	bookingID := *pairing.BookingID
	booking, err := s.repos.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		if err = mapRepoError(err); !isNotFoundError(err) {
			return Pairing{}, err
		}
	} else if booking.Status != BookingCancelled {
		return pairing, nil
	}

	reset := pairing.Reset(s.now())
	if err := s.savePairing(ctx, &reset, pairing.Version); err != nil {
		return Pairing{}, err
	}
	logger.WarnContext(ctx, "released pairing linked to a cancelled booking", "booking_id", bookingID)
	publishPairing(ctx, s.notifier, TopicMatches, ActivityMatchStatusUpdate, reset)
	return reset, nil
}

// abandonBooking cancels a booking whose pairing could not be linked to it.
func (s *MatchingService) abandonBooking(ctx context.Context, logger *slog.Logger, booking Booking) {
	cancelled := booking
	cancelled.Status = BookingCancelled
	cancelled.Version = booking.Version + 1
	cancelled.UpdatedAt = s.now()
	if err := s.repos.Bookings.UpdateBooking(ctx, cancelled, booking.Version); err != nil {
		logger.WarnContext(ctx, "failed to abandon unlinked booking", "booking_id", booking.ID, "error", err)
	}
}

func (s *MatchingService) busyIntervals(ctx context.Context, userIDs ...string) ([]matching.Interval, error) {
	busy := make([]matching.Interval, 0)
	for _, userID := range userIDs {
		bookings, err := s.repos.Bookings.ListBookingsForUser(ctx, userID)
		if err != nil {
			return nil, mapRepoError(err)
		}
		for _, booking := range bookings {
			if booking.Status == BookingCancelled {
				continue
			}
			busy = append(busy, matching.Interval{Start: booking.Start, End: booking.End})
		}
	}
	return busy, nil
}

func (s *MatchingService) recommendVenue(ctx context.Context, a, b string) (string, error) {
	if s.venues == nil {
		return venue.Unknown, nil
	}
	label, err := s.venues.Recommend(ctx, s.location(ctx, a), s.location(ctx, b))
	if err != nil {
		return "", fmt.Errorf("recommend venue: %w", err)
	}
	return label, nil
}

func (s *MatchingService) location(ctx context.Context, userID string) *venue.Point {
	participant, ok := s.participant(ctx, userID)
	if !ok || participant.Latitude == nil || participant.Longitude == nil {
		return nil
	}
	return &venue.Point{Latitude: *participant.Latitude, Longitude: *participant.Longitude}
}

func (s *MatchingService) ensureNotPenalized(ctx context.Context, userID string, now time.Time) error {
	participant, ok := s.participant(ctx, userID)
	if !ok || participant.PenalizedUntil == nil {
		return nil
	}
	if now.Before(*participant.PenalizedUntil) {
		return &PenalizedError{Until: *participant.PenalizedUntil}
	}
	return nil
}

func (s *MatchingService) participant(ctx context.Context, userID string) (Participant, bool) {
	if s.repos.Participants == nil {
		return Participant{}, false
	}
	participant, err := s.repos.Participants.GetParticipant(ctx, userID)
	if err != nil {
		return Participant{}, false
	}
	return participant, true
}

func (s *MatchingService) displayName(ctx context.Context, userID string) string {
	return displayName(ctx, s.repos.Participants, userID)
}

func (s *MatchingService) getPairing(ctx context.Context, a, b string) (Pairing, error) {
	pairing, err := s.repos.Pairings.GetPairing(ctx, a, b)
	if err != nil {
		return Pairing{}, mapRepoError(err)
	}
	return pairing, nil
}

func (s *MatchingService) savePairing(ctx context.Context, pairing *Pairing, expectedVersion int64) error {
	return savePairing(ctx, s.repos.Pairings, pairing, expectedVersion)
}

func savePairing(ctx context.Context, repo PairingRepository, pairing *Pairing, expectedVersion int64) error {
	pairing.Version = expectedVersion + 1
	if err := repo.UpdatePairing(ctx, *pairing, expectedVersion); err != nil {
		return mapRepoError(err)
	}
	return nil
}

func displayName(ctx context.Context, participants ParticipantRepository, userID string) string {
	if participants != nil {
		if participant, err := participants.GetParticipant(ctx, userID); err == nil && participant.DisplayName != "" {
			return participant.DisplayName
		}
	}
	return "your match"
}

func toMatchingSlots(slots []Slot) []matching.Slot {
	out := make([]matching.Slot, 0, len(slots))
	for _, slot := range slots {
		out = append(out, matching.Slot{ID: slot.ID, Start: slot.Start, End: slot.End})
	}
	return out
}
