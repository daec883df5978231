package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/date-booking/internal/persistence"
)

// PairingRepository implements persistence.PairingRepository using SQLite
type PairingRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewPairingRepository creates a new SQLite pairing repository
func NewPairingRepository(pool *ConnectionPool) *PairingRepository {
	return &PairingRepository{pool: pool, mapper: NewErrorMapper()}
}

const pairingColumns = `user_a, user_b, status, a_submitted, b_submitted, booking_id, version, created_at, updated_at`

// CreatePairing inserts a new pairing.
func (r *PairingRepository) CreatePairing(ctx context.Context, pairing persistence.Pairing) error {
	pairing.UserA, pairing.UserB = persistence.PairKey(pairing.UserA, pairing.UserB)
	if pairing.UserA == "" || pairing.UserA == pairing.UserB {
		return persistence.ErrConstraintViolation
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pairings (`+pairingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			pairing.UserA,
			pairing.UserB,
			pairing.Status,
			pairing.ASubmitted,
			pairing.BSubmitted,
			nullString(pairing.BookingID),
			pairing.Version,
			formatTime(pairing.CreatedAt),
			formatTime(pairing.UpdatedAt),
		)
		return r.mapper.MapError(err)
	})
}

// GetPairing retrieves the pairing of two users in either order.
func (r *PairingRepository) GetPairing(ctx context.Context, userA, userB string) (persistence.Pairing, error) {
	userA, userB = persistence.PairKey(userA, userB)
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+pairingColumns+` FROM pairings WHERE user_a = ? AND user_b = ?`, userA, userB)
	pairing, err := scanPairing(row)
	if err != nil {
		return persistence.Pairing{}, r.mapper.MapError(err)
	}
	return pairing, nil
}

// UpdatePairing replaces a pairing when its stored version matches.
func (r *PairingRepository) UpdatePairing(ctx context.Context, pairing persistence.Pairing, expectedVersion int64) error {
	pairing.UserA, pairing.UserB = persistence.PairKey(pairing.UserA, pairing.UserB)
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE pairings
			SET status = ?, a_submitted = ?, b_submitted = ?, booking_id = ?, version = ?, updated_at = ?
			WHERE user_a = ? AND user_b = ? AND version = ?
		`,
			pairing.Status,
			pairing.ASubmitted,
			pairing.BSubmitted,
			nullString(pairing.BookingID),
			pairing.Version,
			formatTime(pairing.UpdatedAt),
			pairing.UserA,
			pairing.UserB,
			expectedVersion,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return r.checkUpdated(ctx, tx, result, pairing.UserA, pairing.UserB)
	})
}

// checkUpdated distinguishes a missing pairing from a stale version when an
// update touched no rows.
func (r *PairingRepository) checkUpdated(ctx context.Context, tx *sql.Tx, result sql.Result, userA, userB string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return r.mapper.MapError(err)
	}
	if affected > 0 {
		return nil
	}
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM pairings WHERE user_a = ? AND user_b = ?`, userA, userB).Scan(&exists)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return persistence.ErrVersionConflict
}

// ListPairingsForUser returns the user's pairings, most recently updated first.
func (r *PairingRepository) ListPairingsForUser(ctx context.Context, userID string) ([]persistence.Pairing, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT `+pairingColumns+`
		FROM pairings
		WHERE user_a = ? OR user_b = ?
		ORDER BY updated_at DESC, user_a ASC, user_b ASC
	`, userID, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	pairings := make([]persistence.Pairing, 0)
	for rows.Next() {
		pairing, err := scanPairing(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		pairings = append(pairings, pairing)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return pairings, nil
}

func scanPairing(row rowScanner) (persistence.Pairing, error) {
	var (
		pairing              persistence.Pairing
		bookingID            sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&pairing.UserA,
		&pairing.UserB,
		&pairing.Status,
		&pairing.ASubmitted,
		&pairing.BSubmitted,
		&bookingID,
		&pairing.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Pairing{}, err
	}
	pairing.BookingID = stringPtr(bookingID)
	var err error
	if pairing.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Pairing{}, err
	}
	if pairing.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Pairing{}, err
	}
	return pairing, nil
}
