package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/date-booking/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using SQLite
type BookingRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewBookingRepository creates a new SQLite booking repository
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{pool: pool, mapper: NewErrorMapper()}
}

const bookingColumns = `id, requester_id, recipient_id, start_time, end_time, venue, status,
	requester_confirmed, recipient_confirmed, requester_attended, recipient_attended,
	requester_wants_contact, recipient_wants_contact, contact_exchanged, version, created_at, updated_at`

// CreateBooking inserts a new booking.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bookings (`+bookingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			booking.ID,
			booking.RequesterID,
			booking.RecipientID,
			formatTime(booking.Start),
			formatTime(booking.End),
			booking.Venue,
			booking.Status,
			booking.RequesterConfirmed,
			booking.RecipientConfirmed,
			nullBool(booking.RequesterAttended),
			nullBool(booking.RecipientAttended),
			nullBool(booking.RequesterWantsContact),
			nullBool(booking.RecipientWantsContact),
			booking.ContactExchanged,
			booking.Version,
			formatTime(booking.CreatedAt),
			formatTime(booking.UpdatedAt),
		)
		return r.mapper.MapError(err)
	})
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if err != nil {
		return persistence.Booking{}, r.mapper.MapError(err)
	}
	return booking, nil
}

// UpdateBooking replaces the mutable booking fields when the stored version matches.
func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking, expectedVersion int64) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE bookings
			SET venue = ?, status = ?, requester_confirmed = ?, recipient_confirmed = ?,
				requester_attended = ?, recipient_attended = ?,
				requester_wants_contact = ?, recipient_wants_contact = ?,
				contact_exchanged = ?, version = ?, updated_at = ?
			WHERE id = ? AND version = ?
		`,
			booking.Venue,
			booking.Status,
			booking.RequesterConfirmed,
			booking.RecipientConfirmed,
			nullBool(booking.RequesterAttended),
			nullBool(booking.RecipientAttended),
			nullBool(booking.RequesterWantsContact),
			nullBool(booking.RecipientWantsContact),
			booking.ContactExchanged,
			booking.Version,
			formatTime(booking.UpdatedAt),
			booking.ID,
			expectedVersion,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return r.mapper.MapError(err)
		}
		if affected > 0 {
			return nil
		}
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, booking.ID).Scan(&exists); err != nil {
			return r.mapper.MapError(err)
		}
		return persistence.ErrVersionConflict
	})
}

// ListBookingsForUser returns bookings the user participates in ordered by start time.
func (r *BookingRepository) ListBookingsForUser(ctx context.Context, userID string) ([]persistence.Booking, error) {
	return r.list(ctx, `WHERE requester_id = ? OR recipient_id = ?`, userID, userID)
}

// ListBookingsForPair returns the bookings shared by two users ordered by start time.
func (r *BookingRepository) ListBookingsForPair(ctx context.Context, userA, userB string) ([]persistence.Booking, error) {
	return r.list(ctx, `WHERE (requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?)`, userA, userB, userB, userA)
}

func (r *BookingRepository) list(ctx context.Context, where string, args ...any) ([]persistence.Booking, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings `+where+` ORDER BY start_time ASC, id ASC`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	bookings := make([]persistence.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return bookings, nil
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		booking                                      persistence.Booking
		start, end, createdAt, updatedAt             string
		requesterAttended, recipientAttended         sql.NullBool
		requesterWantsContact, recipientWantsContact sql.NullBool
	)
	if err := row.Scan(
		&booking.ID,
		&booking.RequesterID,
		&booking.RecipientID,
		&start,
		&end,
		&booking.Venue,
		&booking.Status,
		&booking.RequesterConfirmed,
		&booking.RecipientConfirmed,
		&requesterAttended,
		&recipientAttended,
		&requesterWantsContact,
		&recipientWantsContact,
		&booking.ContactExchanged,
		&booking.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Booking{}, err
	}
	booking.RequesterAttended = boolPtr(requesterAttended)
	booking.RecipientAttended = boolPtr(recipientAttended)
	booking.RequesterWantsContact = boolPtr(requesterWantsContact)
	booking.RecipientWantsContact = boolPtr(recipientWantsContact)

	var err error
	if booking.Start, err = parseTime(start); err != nil {
		return persistence.Booking{}, err
	}
	if booking.End, err = parseTime(end); err != nil {
		return persistence.Booking{}, err
	}
	if booking.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}
