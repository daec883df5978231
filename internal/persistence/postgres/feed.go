package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/date-booking/internal/persistence"
)

// CreateActivity inserts a feed entry.
func (s *Storage) CreateActivity(ctx context.Context, activity persistence.Activity) error {
	if activity.ID == "" || activity.RecipientID == "" {
		return persistence.ErrConstraintViolation
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return mapError(err, "acquire connection")
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		INSERT INTO activities (id, recipient_id, type, content, reference_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, activity.ID, activity.RecipientID, activity.Type, activity.Content, activity.ReferenceID, activity.IsRead, activity.CreatedAt.UTC())
	return mapError(err, "insert activity")
}

// ListActivities returns the recipient's feed, newest first.
func (s *Storage) ListActivities(ctx context.Context, recipientID string) ([]persistence.Activity, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, mapError(err, "acquire connection")
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT id, recipient_id, type, content, reference_id, is_read, created_at
		FROM activities
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC
	`, recipientID)
	if err != nil {
		return nil, mapError(err, "list activities")
	}
	defer rows.Close()

	activities := make([]persistence.Activity, 0)
	for rows.Next() {
		var activity persistence.Activity
		if err := rows.Scan(
			&activity.ID,
			&activity.RecipientID,
			&activity.Type,
			&activity.Content,
			&activity.ReferenceID,
			&activity.IsRead,
			&activity.CreatedAt,
		); err != nil {
			return nil, mapError(err, "scan activity")
		}
		activity.CreatedAt = activity.CreatedAt.UTC()
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "iterate activities")
	}
	return activities, nil
}

// MarkActivitiesRead flags every unread entry of the recipient as read.
func (s *Storage) MarkActivitiesRead(ctx context.Context, recipientID string) (int, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, mapError(err, "acquire connection")
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE activities SET is_read = true WHERE recipient_id = $1 AND is_read = false`, recipientID)
	if err != nil {
		return 0, mapError(err, "mark activities read")
	}
	return int(tag.RowsAffected()), nil
}

// CreateMessage inserts a chat message.
func (s *Storage) CreateMessage(ctx context.Context, message persistence.Message) error {
	if message.ID == "" {
		return persistence.ErrConstraintViolation
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return mapError(err, "acquire connection")
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		INSERT INTO messages (id, booking_id, sender_id, recipient_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, message.ID, message.BookingID, message.SenderID, message.RecipientID, message.Content, message.CreatedAt.UTC())
	return mapError(err, "insert message")
}

// ListMessages returns the booking's messages, oldest first.
func (s *Storage) ListMessages(ctx context.Context, bookingID string) ([]persistence.Message, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, mapError(err, "acquire connection")
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT id, booking_id, sender_id, recipient_id, content, created_at
		FROM messages
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC
	`, bookingID)
	if err != nil {
		return nil, mapError(err, "list messages")
	}
	defer rows.Close()

	messages := make([]persistence.Message, 0)
	for rows.Next() {
		var message persistence.Message
		if err := rows.Scan(&message.ID, &message.BookingID, &message.SenderID, &message.RecipientID, &message.Content, &message.CreatedAt); err != nil {
			return nil, mapError(err, "scan message")
		}
		message.CreatedAt = message.CreatedAt.UTC()
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "iterate messages")
	}
	return messages, nil
}

// CreatePayment inserts a provider transaction.
func (s *Storage) CreatePayment(ctx context.Context, payment persistence.Payment) error {
	if payment.TxnRef == "" {
		return persistence.ErrConstraintViolation
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return mapError(err, "acquire connection")
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		INSERT INTO payments (txn_ref, booking_id, user_id, amount, status, provider_response, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		payment.TxnRef,
		payment.BookingID,
		payment.UserID,
		payment.Amount,
		payment.Status,
		payment.ProviderResponse,
		payment.CreatedAt.UTC(),
		payment.UpdatedAt.UTC(),
	)
	return mapError(err, "insert payment")
}

// GetPayment retrieves a payment by transaction reference.
func (s *Storage) GetPayment(ctx context.Context, txnRef string) (persistence.Payment, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return persistence.Payment{}, mapError(err, "acquire connection")
	}
	defer conn.Release()

	var payment persistence.Payment
	err = conn.QueryRow(ctx, `
		SELECT txn_ref, booking_id, user_id, amount, status, provider_response, created_at, updated_at
		FROM payments WHERE txn_ref = $1
	`, txnRef).Scan(
		&payment.TxnRef,
		&payment.BookingID,
		&payment.UserID,
		&payment.Amount,
		&payment.Status,
		&payment.ProviderResponse,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return persistence.Payment{}, mapError(err, "select payment")
	}
	payment.CreatedAt = payment.CreatedAt.UTC()
	payment.UpdatedAt = payment.UpdatedAt.UTC()
	return payment, nil
}

// TransitionPayment changes the payment status when it currently equals from.
func (s *Storage) TransitionPayment(ctx context.Context, txnRef, from, to string, providerResponse *string, at time.Time) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE payments SET status = $1, provider_response = $2, updated_at = $3
			WHERE txn_ref = $4 AND status = $5
		`, to, providerResponse, at.UTC(), txnRef, from)
		if err != nil {
			return mapError(err, "transition payment")
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		return missingOrConflict(ctx, tx, `SELECT EXISTS (SELECT 1 FROM payments WHERE txn_ref = $1)`, txnRef)
	})
}

// HasSuccessfulPayment reports whether the user paid for the booking.
func (s *Storage) HasSuccessfulPayment(ctx context.Context, bookingID, userID string) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, mapError(err, "acquire connection")
	}
	defer conn.Release()

	var paid bool
	err = conn.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM payments WHERE booking_id = $1 AND user_id = $2 AND status = $3)
	`, bookingID, userID, persistence.PaymentStatusSuccess).Scan(&paid)
	if err != nil {
		return false, mapError(err, "check payment")
	}
	return paid, nil
}

// UpsertParticipant stores profile fields without touching an active penalty.
func (s *Storage) UpsertParticipant(ctx context.Context, participant persistence.Participant) error {
	if participant.ID == "" {
		return persistence.ErrConstraintViolation
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return mapError(err, "acquire connection")
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		INSERT INTO participants (id, display_name, email, latitude, longitude, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_at = excluded.updated_at
	`,
		participant.ID,
		participant.DisplayName,
		participant.Email,
		participant.Latitude,
		participant.Longitude,
		participant.UpdatedAt.UTC(),
	)
	return mapError(err, "upsert participant")
}

// GetParticipant retrieves a participant profile.
func (s *Storage) GetParticipant(ctx context.Context, id string) (persistence.Participant, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return persistence.Participant{}, mapError(err, "acquire connection")
	}
	defer conn.Release()

	var participant persistence.Participant
	err = conn.QueryRow(ctx, `
		SELECT id, display_name, email, latitude, longitude, penalized_until, updated_at
		FROM participants WHERE id = $1
	`, id).Scan(
		&participant.ID,
		&participant.DisplayName,
		&participant.Email,
		&participant.Latitude,
		&participant.Longitude,
		&participant.PenalizedUntil,
		&participant.UpdatedAt,
	)
	if err != nil {
		return persistence.Participant{}, mapError(err, "select participant")
	}
	participant.PenalizedUntil = utcPtr(participant.PenalizedUntil)
	participant.UpdatedAt = participant.UpdatedAt.UTC()
	return participant, nil
}

// SetPenalty records the end of a participant's penalty, creating the row if needed.
func (s *Storage) SetPenalty(ctx context.Context, id string, until time.Time) error {
	if id == "" {
		return persistence.ErrConstraintViolation
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return mapError(err, "acquire connection")
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		INSERT INTO participants (id, penalized_until, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (id) DO UPDATE SET penalized_until = excluded.penalized_until
	`, id, until.UTC())
	return mapError(err, "set penalty")
}
