package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/date-booking/internal/persistence"
)

// MessageRepository implements persistence.MessageRepository using SQLite
type MessageRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewMessageRepository creates a new SQLite message repository
func NewMessageRepository(pool *ConnectionPool) *MessageRepository {
	return &MessageRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateMessage inserts a chat message.
func (r *MessageRepository) CreateMessage(ctx context.Context, message persistence.Message) error {
	if message.ID == "" || message.BookingID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, booking_id, sender_id, recipient_id, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, message.ID, message.BookingID, message.SenderID, message.RecipientID, message.Content, formatTime(message.CreatedAt))
		return r.mapper.MapError(err)
	})
}

// ListMessages returns a booking's messages, oldest first.
func (r *MessageRepository) ListMessages(ctx context.Context, bookingID string) ([]persistence.Message, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, booking_id, sender_id, recipient_id, content, created_at
		FROM messages
		WHERE booking_id = ?
		ORDER BY created_at ASC, id ASC
	`, bookingID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	messages := make([]persistence.Message, 0)
	for rows.Next() {
		var (
			message   persistence.Message
			createdAt string
		)
		if err := rows.Scan(&message.ID, &message.BookingID, &message.SenderID, &message.RecipientID, &message.Content, &createdAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if message.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return messages, nil
}
