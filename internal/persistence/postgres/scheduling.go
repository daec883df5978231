package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/example/date-booking/internal/persistence"
)

// CreateSlot inserts a new slot.
func (s *Storage) CreateSlot(ctx context.Context, slot persistence.Slot) error {
	if slot.ID == "" || !slot.Start.Before(slot.End) {
		return persistence.ErrConstraintViolation
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return mapError(err, "acquire connection")
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		INSERT INTO slots (id, owner_id, counterpart_id, start_time, end_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, slot.ID, slot.OwnerID, slot.CounterpartID, slot.Start.UTC(), slot.End.UTC(), slot.CreatedAt.UTC())
	return mapError(err, "insert slot")
}

// GetSlot retrieves a slot by ID.
func (s *Storage) GetSlot(ctx context.Context, id string) (persistence.Slot, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return persistence.Slot{}, mapError(err, "acquire connection")
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
		SELECT id, owner_id, counterpart_id, start_time, end_time, created_at
		FROM slots WHERE id = $1
	`, id)
	slot, err := scanSlot(row)
	if err != nil {
		return persistence.Slot{}, mapError(err, "select slot")
	}
	return slot, nil
}

// DeleteSlot removes a slot.
func (s *Storage) DeleteSlot(ctx context.Context, id string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return mapError(err, "acquire connection")
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete slot")
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListSlots returns the slots ownerID declared for counterpartID ordered by start.
func (s *Storage) ListSlots(ctx context.Context, ownerID, counterpartID string) ([]persistence.Slot, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, mapError(err, "acquire connection")
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT id, owner_id, counterpart_id, start_time, end_time, created_at
		FROM slots
		WHERE owner_id = $1 AND counterpart_id = $2
		ORDER BY start_time ASC, id ASC
	`, ownerID, counterpartID)
	if err != nil {
		return nil, mapError(err, "list slots")
	}
	defer rows.Close()

	slots := make([]persistence.Slot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, mapError(err, "scan slot")
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "iterate slots")
	}
	return slots, nil
}

// DeleteSlotsForPair removes the slots both users declared for each other.
func (s *Storage) DeleteSlotsForPair(ctx context.Context, userA, userB string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return mapError(err, "acquire connection")
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		DELETE FROM slots
		WHERE (owner_id = $1 AND counterpart_id = $2) OR (owner_id = $2 AND counterpart_id = $1)
	`, userA, userB)
	return mapError(err, "delete pair slots")
}

func scanSlot(row rowScanner) (persistence.Slot, error) {
	var slot persistence.Slot
	if err := row.Scan(&slot.ID, &slot.OwnerID, &slot.CounterpartID, &slot.Start, &slot.End, &slot.CreatedAt); err != nil {
		return persistence.Slot{}, err
	}
	slot.Start = slot.Start.UTC()
	slot.End = slot.End.UTC()
	slot.CreatedAt = slot.CreatedAt.UTC()
	return slot, nil
}

const pairingColumns = `user_a, user_b, status, a_submitted, b_submitted, booking_id, version, created_at, updated_at`

// CreatePairing inserts a new pairing.
func (s *Storage) CreatePairing(ctx context.Context, pairing persistence.Pairing) error {
	pairing.UserA, pairing.UserB = persistence.PairKey(pairing.UserA, pairing.UserB)
	if pairing.UserA == "" || pairing.UserA == pairing.UserB {
		return persistence.ErrConstraintViolation
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return mapError(err, "acquire connection")
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		INSERT INTO pairings (`+pairingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		pairing.UserA,
		pairing.UserB,
		pairing.Status,
		pairing.ASubmitted,
		pairing.BSubmitted,
		pairing.BookingID,
		pairing.Version,
		pairing.CreatedAt.UTC(),
		pairing.UpdatedAt.UTC(),
	)
	return mapError(err, "insert pairing")
}

// GetPairing retrieves the pairing of two users in either order.
func (s *Storage) GetPairing(ctx context.Context, userA, userB string) (persistence.Pairing, error) {
	userA, userB = persistence.PairKey(userA, userB)
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return persistence.Pairing{}, mapError(err, "acquire connection")
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+pairingColumns+` FROM pairings WHERE user_a = $1 AND user_b = $2`, userA, userB)
	pairing, err := scanPairing(row)
	if err != nil {
		return persistence.Pairing{}, mapError(err, "select pairing")
	}
	return pairing, nil
}

// UpdatePairing replaces a pairing when its stored version matches.
func (s *Storage) UpdatePairing(ctx context.Context, pairing persistence.Pairing, expectedVersion int64) error {
	pairing.UserA, pairing.UserB = persistence.PairKey(pairing.UserA, pairing.UserB)
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE pairings
			SET status = $1, a_submitted = $2, b_submitted = $3, booking_id = $4, version = $5, updated_at = $6
			WHERE user_a = $7 AND user_b = $8 AND version = $9
		`,
			pairing.Status,
			pairing.ASubmitted,
			pairing.BSubmitted,
			pairing.BookingID,
			pairing.Version,
			pairing.UpdatedAt.UTC(),
			pairing.UserA,
			pairing.UserB,
			expectedVersion,
		)
		if err != nil {
			return mapError(err, "update pairing")
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		return missingOrConflict(ctx, tx, `SELECT EXISTS (SELECT 1 FROM pairings WHERE user_a = $1 AND user_b = $2)`, pairing.UserA, pairing.UserB)
	})
}

// ListPairingsForUser returns every pairing that includes userID, most recently updated first.
func (s *Storage) ListPairingsForUser(ctx context.Context, userID string) ([]persistence.Pairing, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, mapError(err, "acquire connection")
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT `+pairingColumns+`
		FROM pairings
		WHERE user_a = $1 OR user_b = $1
		ORDER BY updated_at DESC, user_a ASC, user_b ASC
	`, userID)
	if err != nil {
		return nil, mapError(err, "list pairings")
	}
	defer rows.Close()

	pairings := make([]persistence.Pairing, 0)
	for rows.Next() {
		pairing, err := scanPairing(rows)
		if err != nil {
			return nil, mapError(err, "scan pairing")
		}
		pairings = append(pairings, pairing)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "iterate pairings")
	}
	return pairings, nil
}

func scanPairing(row rowScanner) (persistence.Pairing, error) {
	var pairing persistence.Pairing
	if err := row.Scan(
		&pairing.UserA,
		&pairing.UserB,
		&pairing.Status,
		&pairing.ASubmitted,
		&pairing.BSubmitted,
		&pairing.BookingID,
		&pairing.Version,
		&pairing.CreatedAt,
		&pairing.UpdatedAt,
	); err != nil {
		return persistence.Pairing{}, err
	}
	pairing.CreatedAt = pairing.CreatedAt.UTC()
	pairing.UpdatedAt = pairing.UpdatedAt.UTC()
	return pairing, nil
}

const bookingColumns = `id, requester_id, recipient_id, start_time, end_time, venue, status,
	requester_confirmed, recipient_confirmed, requester_attended, recipient_attended,
	requester_wants_contact, recipient_wants_contact, contact_exchanged, version, created_at, updated_at`

// CreateBooking inserts a new booking.
func (s *Storage) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return mapError(err, "acquire connection")
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		booking.ID,
		booking.RequesterID,
		booking.RecipientID,
		booking.Start.UTC(),
		booking.End.UTC(),
		booking.Venue,
		booking.Status,
		booking.RequesterConfirmed,
		booking.RecipientConfirmed,
		booking.RequesterAttended,
		booking.RecipientAttended,
		booking.RequesterWantsContact,
		booking.RecipientWantsContact,
		booking.ContactExchanged,
		booking.Version,
		booking.CreatedAt.UTC(),
		booking.UpdatedAt.UTC(),
	)
	return mapError(err, "insert booking")
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return persistence.Booking{}, mapError(err, "acquire connection")
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	booking, err := scanBooking(row)
	if err != nil {
		return persistence.Booking{}, mapError(err, "select booking")
	}
	return booking, nil
}

// UpdateBooking replaces the mutable booking fields when the stored version matches.
func (s *Storage) UpdateBooking(ctx context.Context, booking persistence.Booking, expectedVersion int64) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE bookings
			SET venue = $1, status = $2, requester_confirmed = $3, recipient_confirmed = $4,
				requester_attended = $5, recipient_attended = $6,
				requester_wants_contact = $7, recipient_wants_contact = $8,
				contact_exchanged = $9, version = $10, updated_at = $11
			WHERE id = $12 AND version = $13
		`,
			booking.Venue,
			booking.Status,
			booking.RequesterConfirmed,
			booking.RecipientConfirmed,
			booking.RequesterAttended,
			booking.RecipientAttended,
			booking.RequesterWantsContact,
			booking.RecipientWantsContact,
			booking.ContactExchanged,
			booking.Version,
			booking.UpdatedAt.UTC(),
			booking.ID,
			expectedVersion,
		)
		if err != nil {
			return mapError(err, "update booking")
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		return missingOrConflict(ctx, tx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, booking.ID)
	})
}

// ListBookingsForUser returns bookings the user participates in ordered by start time.
func (s *Storage) ListBookingsForUser(ctx context.Context, userID string) ([]persistence.Booking, error) {
	return s.listBookings(ctx, `WHERE requester_id = $1 OR recipient_id = $1`, userID)
}

// ListBookingsForPair returns the bookings shared by two users ordered by start time.
func (s *Storage) ListBookingsForPair(ctx context.Context, userA, userB string) ([]persistence.Booking, error) {
	return s.listBookings(ctx, `WHERE (requester_id = $1 AND recipient_id = $2) OR (requester_id = $2 AND recipient_id = $1)`, userA, userB)
}

func (s *Storage) listBookings(ctx context.Context, where string, args ...any) ([]persistence.Booking, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, mapError(err, "acquire connection")
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+bookingColumns+` FROM bookings `+where+` ORDER BY start_time ASC, id ASC`, args...)
	if err != nil {
		return nil, mapError(err, "list bookings")
	}
	defer rows.Close()

	bookings := make([]persistence.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, mapError(err, "scan booking")
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "iterate bookings")
	}
	return bookings, nil
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var booking persistence.Booking
	if err := row.Scan(
		&booking.ID,
		&booking.RequesterID,
		&booking.RecipientID,
		&booking.Start,
		&booking.End,
		&booking.Venue,
		&booking.Status,
		&booking.RequesterConfirmed,
		&booking.RecipientConfirmed,
		&booking.RequesterAttended,
		&booking.RecipientAttended,
		&booking.RequesterWantsContact,
		&booking.RecipientWantsContact,
		&booking.ContactExchanged,
		&booking.Version,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	); err != nil {
		return persistence.Booking{}, err
	}
	booking.Start = booking.Start.UTC()
	booking.End = booking.End.UTC()
	booking.CreatedAt = booking.CreatedAt.UTC()
	booking.UpdatedAt = booking.UpdatedAt.UTC()
	return booking, nil
}

// missingOrConflict reports ErrNotFound when the existence query finds no
// row, and ErrVersionConflict otherwise.
func missingOrConflict(ctx context.Context, tx pgx.Tx, query string, args ...any) error {
	var exists bool
	if err := tx.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return mapError(err, "check existence")
	}
	if !exists {
		return persistence.ErrNotFound
	}
	return persistence.ErrVersionConflict
}
