package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const maxMessageLength = 2000

// ChatService relays messages between booking participants inside the
// chat-unlock window.
type ChatService struct {
	repos       Repositories
	policy      Policy
	notifier    Notifier
	recorder    recorder
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewChatService wires dependencies for chat operations.
func NewChatService(deps Dependencies) *ChatService {
	deps = deps.withDefaults()
	return &ChatService{
		repos:       deps.Repositories,
		policy:      deps.Policy,
		notifier:    deps.Notifier,
		recorder:    newRecorder(deps),
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		logger:      deps.Logger,
	}
}

func (s *ChatService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ChatService", operation, attrs...)
}

// Status evaluates the chat gate of a booking for the principal.
func (s *ChatService) Status(ctx context.Context, principal Principal, bookingID string) (status ChatStatus, err error) {
	if s == nil {
		err = fmt.Errorf("ChatService is nil")
		return
	}
	if s.repos.Bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Status", "principal_id", principal.UserID, "booking_id", bookingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to evaluate chat gate", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	booking, err := s.participantBooking(ctx, principal, bookingID)
	if err != nil {
		return
	}
	status = s.evaluate(booking)
	return
}

// SendMessage stores a message and pushes it to both participants.
func (s *ChatService) SendMessage(ctx context.Context, params SendMessageParams) (message Message, err error) {
	if s == nil {
		err = fmt.Errorf("ChatService is nil")
		return
	}
	if s.repos.Bookings == nil || s.repos.Messages == nil {
		err = fmt.Errorf("chat repositories not configured")
		return
	}

	sender := params.Principal.UserID
	logger := s.loggerWith(ctx, "SendMessage", "principal_id", sender, "booking_id", params.BookingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to send message", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("message_id", message.ID).InfoContext(ctx, "message sent")
	}()

	content := strings.TrimSpace(params.Content)
	vErr := &ValidationError{}
	if content == "" {
		vErr.add("content", "content is required")
	} else if utf8.RuneCountInString(content) > maxMessageLength {
		vErr.add("content", fmt.Sprintf("content must be at most %d characters", maxMessageLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	booking, err := s.unlockedBooking(ctx, params.Principal, params.BookingID)
	if err != nil {
		return
	}

	candidate := Message{
		ID:          s.idGenerator(),
		BookingID:   booking.ID,
		SenderID:    sender,
		RecipientID: booking.Counterpart(sender),
		Content:     content,
		CreatedAt:   s.now(),
	}
	if createErr := s.repos.Messages.CreateMessage(ctx, candidate); createErr != nil {
		err = mapRepoError(createErr)
		return
	}
	message = candidate

	for _, userID := range []string{message.SenderID, message.RecipientID} {
		s.notifier.Publish(ctx, Event{UserID: userID, Topic: TopicMessages, Type: ActivityMessageNew, Payload: message})
	}
	s.recorder.record(ctx, logger, message.RecipientID, ActivityMessageNew,
		"New message from "+displayName(ctx, s.repos.Participants, sender), stringPtr(booking.ID))
	return
}

// ListMessages returns the conversation of a booking, oldest first.
func (s *ChatService) ListMessages(ctx context.Context, principal Principal, bookingID string) (messages []Message, err error) {
	if s == nil {
		err = fmt.Errorf("ChatService is nil")
		return
	}
	if s.repos.Bookings == nil || s.repos.Messages == nil {
		err = fmt.Errorf("chat repositories not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListMessages", "principal_id", principal.UserID, "booking_id", bookingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list messages", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(messages)).InfoContext(ctx, "messages listed")
	}()

	if _, err = s.unlockedBooking(ctx, principal, bookingID); err != nil {
		return
	}
	listed, listErr := s.repos.Messages.ListMessages(ctx, bookingID)
	if listErr != nil {
		err = mapRepoError(listErr)
		return
	}
	messages = listed
	return
}

func (s *ChatService) unlockedBooking(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	booking, err := s.participantBooking(ctx, principal, bookingID)
	if err != nil {
		return Booking{}, err
	}
	status := s.evaluate(booking)
	if !status.CanChat {
		return Booking{}, &ChatLockedError{UnlockAt: status.UnlockAt}
	}
	return booking, nil
}

func (s *ChatService) participantBooking(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	booking, err := s.repos.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapRepoError(err)
	}
	if !booking.Includes(principal.UserID) {
		return Booking{}, ErrPermission
	}
	return booking, nil
}

// evaluate applies the gate; only confirmed bookings ever open.
func (s *ChatService) evaluate(booking Booking) ChatStatus {
	gate := s.policy.Chat.Evaluate(booking.Start, s.now())
	status := ChatStatus{
		BookingID: booking.ID,
		CanChat:   gate.CanChat,
		UnlockAt:  gate.UnlockAt,
		LockAt:    gate.LockAt,
		Remaining: gate.Remaining,
	}
	if booking.Status != BookingConfirmed {
		status.CanChat = false
	}
	return status
}
