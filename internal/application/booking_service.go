package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// BookingService owns the booking lifecycle: dual confirmation, cancellation
// and the post-date contact exchange.
type BookingService struct {
	repos    Repositories
	policy   Policy
	notifier Notifier
	locks    *PairLocker
	recorder recorder
	views    bookingViews
	now      func() time.Time
	logger   *slog.Logger
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(deps Dependencies) *BookingService {
	deps = deps.withDefaults()
	return &BookingService{
		repos:    deps.Repositories,
		policy:   deps.Policy,
		notifier: deps.Notifier,
		locks:    deps.Locks,
		recorder: newRecorder(deps),
		views:    bookingViews{participants: deps.Repositories.Participants},
		now:      deps.Now,
		logger:   deps.Logger,
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// GetBooking returns a booking the principal participates in.
func (s *BookingService) GetBooking(ctx context.Context, principal Principal, bookingID string) (view BookingView, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.repos.Bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "GetBooking", "principal_id", principal.UserID, "booking_id", bookingID)
	defer func() {
		if err != nil && !isNotFoundError(err) {
			logger.ErrorContext(ctx, "failed to get booking", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	booking, err := s.loadForParticipant(ctx, principal, bookingID)
	if err != nil {
		return
	}
	view = s.views.view(ctx, principal.UserID, booking)
	return
}

// GetBookingForPair returns the active booking between the principal and counterpartID.
func (s *BookingService) GetBookingForPair(ctx context.Context, principal Principal, counterpartID string) (view BookingView, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.repos.Bookings == nil || s.repos.Pairings == nil {
		err = fmt.Errorf("booking repositories not configured")
		return
	}

	logger := s.loggerWith(ctx, "GetBookingForPair", "principal_id", principal.UserID, "counterpart_id", counterpartID)
	defer func() {
		if err != nil && !isNotFoundError(err) {
			logger.ErrorContext(ctx, "failed to get booking for pair", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	pairing, getErr := s.repos.Pairings.GetPairing(ctx, principal.UserID, counterpartID)
	if getErr != nil {
		err = mapRepoError(getErr)
		return
	}
	if pairing.BookingID == nil {
		err = ErrNotFound
		return
	}
	booking, err := s.loadForParticipant(ctx, principal, *pairing.BookingID)
	if err != nil {
		return
	}
	view = s.views.view(ctx, principal.UserID, booking)
	return
}

// ListMyBookings returns the principal's bookings that are not cancelled, ordered by start.
func (s *BookingService) ListMyBookings(ctx context.Context, principal Principal) (views []BookingView, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.repos.Bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListMyBookings", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(views)).InfoContext(ctx, "bookings listed")
	}()

	bookings, listErr := s.repos.Bookings.ListBookingsForUser(ctx, principal.UserID)
	if listErr != nil {
		err = mapRepoError(listErr)
		return
	}
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})

	views = make([]BookingView, 0, len(bookings))
	for _, booking := range bookings {
		if booking.Status == BookingCancelled {
			continue
		}
		views = append(views, s.views.view(ctx, principal.UserID, booking))
	}
	return
}

// ConfirmBooking records the principal's confirmation. The principal must
// have a successful payment for the booking. A second confirmation by the
// same side is a no-op; the booking becomes CONFIRMED once both sides have
// confirmed, and that transition is reported exactly once.
func (s *BookingService) ConfirmBooking(ctx context.Context, principal Principal, bookingID string) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.repos.Bookings == nil || s.repos.Payments == nil {
		err = fmt.Errorf("booking repositories not configured")
		return
	}

	actor := principal.UserID
	logger := s.loggerWith(ctx, "ConfirmBooking", "principal_id", actor, "booking_id", bookingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to confirm booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_status", string(booking.Status)).InfoContext(ctx, "booking confirmed")
	}()

	current, unlock, err := s.lockBooking(ctx, principal, bookingID)
	if err != nil {
		return
	}
	defer unlock()

	if current.Status != BookingProposed {
		err = ErrConflict
		return
	}
	if current.ConfirmedBy(actor) {
		booking = current.RedactFor(actor)
		return
	}

	paid, payErr := s.repos.Payments.HasSuccessfulPayment(ctx, current.ID, actor)
	if payErr != nil {
		err = mapRepoError(payErr)
		return
	}
	if !paid {
		err = ErrPaymentRequired
		return
	}

	updated := current
	if updated.RequesterID == actor {
		updated.RequesterConfirmed = true
	} else {
		updated.RecipientConfirmed = true
	}
	if updated.RequesterConfirmed && updated.RecipientConfirmed {
		updated.Status = BookingConfirmed
	}
	if err = s.saveBooking(ctx, &updated, current.Version); err != nil {
		return
	}

	counterpart := updated.Counterpart(actor)
	if updated.Status == BookingConfirmed {
		s.markScheduled(ctx, logger, updated)
		publishBooking(ctx, s.notifier, s.views, ActivityBookingUpdate, updated)
		for _, userID := range []string{updated.RequesterID, updated.RecipientID} {
			s.recorder.record(ctx, logger, userID, ActivityBookingUpdate, "Your date is confirmed!", stringPtr(updated.ID))
		}
	} else {
		publishBooking(ctx, s.notifier, s.views, ActivityBookingUpdate, updated)
		s.recorder.record(ctx, logger, counterpart, ActivityBookingUpdate,
			displayName(ctx, s.repos.Participants, actor)+" confirmed your date. Confirm to lock it in.", stringPtr(updated.ID))
	}

	booking = updated.RedactFor(actor)
	return
}

// CancelBooking cancels a PROPOSED booking, clears both sides' slots and
// resets the pairing so both users must submit availability again.
func (s *BookingService) CancelBooking(ctx context.Context, principal Principal, bookingID string) (err error) {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}
	if s.repos.Bookings == nil || s.repos.Slots == nil || s.repos.Pairings == nil {
		return fmt.Errorf("booking repositories not configured")
	}

	logger := s.loggerWith(ctx, "CancelBooking", "principal_id", principal.UserID, "booking_id", bookingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking cancelled")
	}()

	current, unlock, err := s.lockBooking(ctx, principal, bookingID)
	if err != nil {
		return err
	}
	defer unlock()

	if current.Status != BookingProposed {
		return ErrConflict
	}
	if _, err := s.cancelAndReset(ctx, logger, principal.UserID, current); err != nil {
		return err
	}
	return nil
}

// CancelConfirmed cancels a CONFIRMED booking before it starts. The acting
// side is penalized and cannot submit availability until the penalty ends.
func (s *BookingService) CancelConfirmed(ctx context.Context, principal Principal, bookingID string) (penalizedUntil time.Time, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.repos.Bookings == nil || s.repos.Slots == nil || s.repos.Pairings == nil || s.repos.Participants == nil {
		err = fmt.Errorf("booking repositories not configured")
		return
	}

	actor := principal.UserID
	logger := s.loggerWith(ctx, "CancelConfirmed", "principal_id", actor, "booking_id", bookingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel confirmed booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("penalized_until", penalizedUntil).InfoContext(ctx, "confirmed booking cancelled")
	}()

	current, unlock, err := s.lockBooking(ctx, principal, bookingID)
	if err != nil {
		return
	}
	defer unlock()

	now := s.now()
	if current.Status != BookingConfirmed || !now.Before(current.Start) {
		err = ErrConflict
		return
	}

	if _, err = s.cancelAndReset(ctx, logger, actor, current); err != nil {
		return
	}

	penalizedUntil = now.Add(s.policy.CancelPenalty)
	if penErr := s.repos.Participants.SetPenalty(ctx, actor, penalizedUntil); penErr != nil {
		err = mapRepoError(penErr)
		return
	}
	s.recorder.record(ctx, logger, actor, ActivityPenaltyNotice,
		fmt.Sprintf("You cancelled a confirmed date. Scheduling is paused until %s.", penalizedUntil.UTC().Format(time.RFC3339)), stringPtr(current.ID))
	return
}

// SubmitFeedback records the principal's post-date answers. Contact details
// are exchanged only when both sides attended and both want contact. Once
// both sides have answered the outcome is final.
func (s *BookingService) SubmitFeedback(ctx context.Context, params FeedbackParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.repos.Bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	actor := params.Principal.UserID
	logger := s.loggerWith(ctx, "SubmitFeedback", "principal_id", actor, "booking_id", params.BookingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to submit feedback", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("contact_exchanged", booking.ContactExchanged).InfoContext(ctx, "feedback submitted")
	}()

	current, unlock, err := s.lockBooking(ctx, params.Principal, params.BookingID)
	if err != nil {
		return
	}
	defer unlock()

	if current.Status != BookingConfirmed || !s.now().After(current.End) {
		err = ErrConflict
		return
	}
	if current.FeedbackComplete() {
		err = ErrConflict
		return
	}

	updated := current
	if updated.RequesterID == actor {
		updated.RequesterAttended = boolPtr(params.Attended)
		updated.RequesterWantsContact = boolPtr(params.WantsContact)
	} else {
		updated.RecipientAttended = boolPtr(params.Attended)
		updated.RecipientWantsContact = boolPtr(params.WantsContact)
	}
	updated.ContactExchanged = updated.FeedbackComplete() &&
		*updated.RequesterAttended && *updated.RecipientAttended &&
		*updated.RequesterWantsContact && *updated.RecipientWantsContact

	if err = s.saveBooking(ctx, &updated, current.Version); err != nil {
		return
	}

	publishBooking(ctx, s.notifier, s.views, ActivityBookingUpdate, updated)
	if updated.ContactExchanged {
		for _, userID := range []string{updated.RequesterID, updated.RecipientID} {
			s.recorder.record(ctx, logger, userID, ActivityContactExchanged, "You both want to keep in touch. Contact details are now available.", stringPtr(updated.ID))
		}
	}

	booking = updated.RedactFor(actor)
	return
}

// GetContact reveals the counterpart's contact details after a mutual opt-in.
func (s *BookingService) GetContact(ctx context.Context, principal Principal, bookingID string) (contact ContactDetails, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.repos.Bookings == nil || s.repos.Participants == nil {
		err = fmt.Errorf("booking repositories not configured")
		return
	}

	logger := s.loggerWith(ctx, "GetContact", "principal_id", principal.UserID, "booking_id", bookingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to get contact", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "contact revealed")
	}()

	booking, err := s.loadForParticipant(ctx, principal, bookingID)
	if err != nil {
		return
	}
	if !booking.ContactExchanged {
		err = ErrPermission
		return
	}
	contact, err = s.views.contact(ctx, booking.Counterpart(principal.UserID))
	return
}

// cancelAndReset releases the pairing before it cancels the booking. A
// failure part way leaves a PROPOSED or CONFIRMED booking that can be
// cancelled again, never a pairing linked to a dead booking.
func (s *BookingService) cancelAndReset(ctx context.Context, logger *slog.Logger, actor string, current Booking) (Booking, error) {
	pairing, err := s.repos.Pairings.GetPairing(ctx, current.RequesterID, current.RecipientID)
	if err != nil {
		return Booking{}, mapRepoError(err)
	}
	released := pairing.LinkedTo(current.ID)
	reset := pairing
	if released {
		reset = pairing.Reset(s.now())
		if err := savePairing(ctx, s.repos.Pairings, &reset, pairing.Version); err != nil {
			return Booking{}, err
		}
	}

	if err := s.repos.Slots.DeleteSlotsForPair(ctx, current.RequesterID, current.RecipientID); err != nil {
		return Booking{}, mapRepoError(err)
	}

	updated := current
	updated.Status = BookingCancelled
	if err := s.saveBooking(ctx, &updated, current.Version); err != nil {
		return Booking{}, err
	}

	publishBooking(ctx, s.notifier, s.views, ActivityBookingUpdate, updated)
	if released {
		publishPairing(ctx, s.notifier, TopicMatches, ActivitySchedulingCanceled, reset)
	}
	counterpart := updated.Counterpart(actor)
	s.recorder.record(ctx, logger, counterpart, ActivitySchedulingCanceled,
		displayName(ctx, s.repos.Participants, actor)+" cancelled your date. Pick new availability to try again.", stringPtr(updated.ID))
	return updated, nil
}

func (s *BookingService) markScheduled(ctx context.Context, logger *slog.Logger, booking Booking) {
	if s.repos.Pairings == nil {
		return
	}
	pairing, err := s.repos.Pairings.GetPairing(ctx, booking.RequesterID, booking.RecipientID)
	if err != nil {
		logger.WarnContext(ctx, "failed to load pairing for confirmed booking", "error", err)
		return
	}
	scheduled := pairing
	scheduled.Status = PairingScheduled
	scheduled.BookingID = stringPtr(booking.ID)
	scheduled.UpdatedAt = s.now()
	if err := savePairing(ctx, s.repos.Pairings, &scheduled, pairing.Version); err != nil {
		logger.WarnContext(ctx, "failed to mark pairing scheduled", "error", err)
		return
	}
	publishPairing(ctx, s.notifier, TopicMatches, ActivityBookingUpdate, scheduled)
}

// lockBooking loads the booking, takes the pair lock and reloads it so the
// caller sees the latest version while holding the lock.
func (s *BookingService) lockBooking(ctx context.Context, principal Principal, bookingID string) (Booking, func(), error) {
	first, err := s.loadForParticipant(ctx, principal, bookingID)
	if err != nil {
		return Booking{}, nil, err
	}
	unlock := s.locks.Lock(first.RequesterID, first.RecipientID)
	current, err := s.repos.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		unlock()
		return Booking{}, nil, mapRepoError(err)
	}
	return current, unlock, nil
}

func (s *BookingService) loadForParticipant(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	booking, err := s.repos.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapRepoError(err)
	}
	if !booking.Includes(principal.UserID) {
		return Booking{}, ErrPermission
	}
	return booking, nil
}

func (s *BookingService) saveBooking(ctx context.Context, booking *Booking, expectedVersion int64) error {
	booking.Version = expectedVersion + 1
	booking.UpdatedAt = s.now()
	if err := s.repos.Bookings.UpdateBooking(ctx, *booking, expectedVersion); err != nil {
		return mapRepoError(err)
	}
	return nil
}
