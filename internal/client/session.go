package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/example/date-booking/internal/wire"
)

// BookingAPI is the subset of APIClient a Session needs.
type BookingAPI interface {
	UserID() string
	ListBookings(ctx context.Context) ([]Booking, error)
	ConfirmBooking(ctx context.Context, id string) (Booking, error)
	CancelBooking(ctx context.Context, id string) error
}

// SessionConfig wires a Session. Stream is optional; without it the session
// relies on polling alone.
type SessionConfig struct {
	API          BookingAPI
	Stream       *Stream
	Notifier     Notifier
	Loading      LoadingIndicator
	PollInterval time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

// Session keeps one participant's bookings current. Polls are the source of
// truth; realtime frames only shorten the delay.
type Session struct {
	api        BookingAPI
	stream     *Stream
	reconciler *Reconciler
	notifier   Notifier
	loading    LoadingIndicator
	interval   time.Duration
	logger     *slog.Logger
	polls      chan struct{}
}

// NewSession applies defaults to cfg. Notifications pass through a
// NotificationFilter with the default window.
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	notifier := NewFilteredNotifier(cfg.Notifier, nil, now)
	loading := cfg.Loading
	if loading == nil {
		loading = NopLoadingIndicator{}
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Session{
		api:        cfg.API,
		stream:     cfg.Stream,
		reconciler: NewReconciler(notifier, logger),
		notifier:   notifier,
		loading:    loading,
		interval:   interval,
		logger:     logger.With("component", "client.Session"),
		polls:      make(chan struct{}, 1),
	}
}

// Reconciler exposes the local view.
func (s *Session) Reconciler() *Reconciler { return s.reconciler }

// Run polls on the configured interval and, when a stream is configured,
// applies realtime frames until ctx is done. A reconnect triggers an
// immediate poll.
func (s *Session) Run(ctx context.Context) error {
	if s.stream != nil {
		go func() {
			_ = s.stream.Run(ctx, s.HandleFrame, func(reconnect bool) {
				if reconnect {
					s.RequestPoll()
				}
			})
		}()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.backgroundPoll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.backgroundPoll(ctx)
		case <-s.polls:
			s.backgroundPoll(ctx)
		}
	}
}

// RequestPoll schedules a poll on the Run loop without blocking.
func (s *Session) RequestPoll() {
	select {
	case s.polls <- struct{}{}:
	default:
	}
}

// Poll fetches the authoritative booking list and merges it.
func (s *Session) Poll(ctx context.Context) error {
	s.loading.SetLoading("bookings", true)
	defer s.loading.SetLoading("bookings", false)

	bookings, err := s.api.ListBookings(ctx)
	if err != nil {
		return err
	}
	s.reconciler.SyncBookings(bookings)
	return nil
}

func (s *Session) backgroundPoll(ctx context.Context) {
	err := s.Poll(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case IsNetworkError(err):
		s.logger.DebugContext(ctx, "poll failed, retrying on next tick", "error", err)
	default:
		s.logger.WarnContext(ctx, "poll failed", "error", err)
	}
}

// HandleFrame applies one realtime frame. Frames that cannot be applied are
// logged and dropped; the next poll corrects any divergence.
func (s *Session) HandleFrame(frame wire.Frame) {
	switch frame.Topic {
	case "scheduling":
		b, err := Normalize(frame.Payload)
		if err != nil {
			s.logger.Warn("dropping booking frame", "type", frame.Type, "error", err)
			return
		}
		s.reconciler.ApplyBooking(b)
	case "activities":
		var activity wire.Activity
		if err := json.Unmarshal(frame.Payload, &activity); err != nil || activity.Content == "" {
			s.logger.Warn("dropping activity frame", "type", frame.Type, "error", err)
			return
		}
		s.notifier.Notify(LevelInfo, activity.Content)
	case "matches", "messages":
		s.RequestPoll()
	default:
		s.logger.Debug("ignoring frame", "topic", frame.Topic, "type", frame.Type)
	}
}

// Confirm marks the booking confirmed for the participant immediately and
// rolls the change back if the server rejects it.
func (s *Session) Confirm(ctx context.Context, bookingID string) error {
	userID := s.api.UserID()
	pending, err := s.reconciler.BeginTentative(bookingID, func(b *Booking) {
		if b.RequesterID == userID {
			b.RequesterConfirmed = true
		} else {
			b.RecipientConfirmed = true
		}
	})
	if err != nil {
		return err
	}

	s.loading.SetLoading("confirm", true)
	updated, err := s.api.ConfirmBooking(ctx, bookingID)
	s.loading.SetLoading("confirm", false)
	if err != nil {
		pending.Rollback(err)
		return err
	}
	s.reconciler.ApplyBooking(updated)
	pending.Commit()
	s.notifier.Notify(LevelSuccess, "Confirmation sent.")
	return nil
}

// Cancel hides the booking immediately. A transport failure keeps the local
// change and leaves recovery to the next poll; a rejection rolls it back.
func (s *Session) Cancel(ctx context.Context, bookingID string) error {
	pending, err := s.reconciler.BeginTentative(bookingID, func(b *Booking) {
		b.Status = StatusCancelled
	})
	if err != nil {
		return err
	}

	if err := s.api.CancelBooking(ctx, bookingID); err != nil {
		if IsNetworkError(err) {
			pending.Commit()
			s.RequestPoll()
			return err
		}
		pending.Rollback(err)
		return err
	}
	pending.Commit()
	s.RequestPoll()
	return nil
}
