package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/date-booking/internal/persistence"
)

// SlotRepository implements persistence.SlotRepository using SQLite
type SlotRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewSlotRepository creates a new SQLite slot repository
func NewSlotRepository(pool *ConnectionPool) *SlotRepository {
	return &SlotRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateSlot inserts a new slot.
func (r *SlotRepository) CreateSlot(ctx context.Context, slot persistence.Slot) error {
	if slot.ID == "" || !slot.Start.Before(slot.End) {
		return persistence.ErrConstraintViolation
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO slots (id, owner_id, counterpart_id, start_time, end_time, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, slot.ID, slot.OwnerID, slot.CounterpartID, formatTime(slot.Start), formatTime(slot.End), formatTime(slot.CreatedAt))
		return r.mapper.MapError(err)
	})
}

// GetSlot retrieves a slot by ID.
func (r *SlotRepository) GetSlot(ctx context.Context, id string) (persistence.Slot, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, owner_id, counterpart_id, start_time, end_time, created_at
		FROM slots WHERE id = ?
	`, id)
	slot, err := scanSlot(row)
	if err != nil {
		return persistence.Slot{}, r.mapper.MapError(err)
	}
	return slot, nil
}

// DeleteSlot removes a slot.
func (r *SlotRepository) DeleteSlot(ctx context.Context, id string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return r.mapper.MapError(err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// ListSlots returns the owner's slots for a counterpart ordered by start time.
func (r *SlotRepository) ListSlots(ctx context.Context, ownerID, counterpartID string) ([]persistence.Slot, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, owner_id, counterpart_id, start_time, end_time, created_at
		FROM slots
		WHERE owner_id = ? AND counterpart_id = ?
		ORDER BY start_time ASC, id ASC
	`, ownerID, counterpartID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	slots := make([]persistence.Slot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return slots, nil
}

// DeleteSlotsForPair removes every slot the two users declared for each other.
func (r *SlotRepository) DeleteSlotsForPair(ctx context.Context, userA, userB string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM slots
			WHERE (owner_id = ? AND counterpart_id = ?) OR (owner_id = ? AND counterpart_id = ?)
		`, userA, userB, userB, userA)
		return r.mapper.MapError(err)
	})
}

func scanSlot(row rowScanner) (persistence.Slot, error) {
	var (
		slot                  persistence.Slot
		start, end, createdAt string
	)
	if err := row.Scan(&slot.ID, &slot.OwnerID, &slot.CounterpartID, &start, &end, &createdAt); err != nil {
		return persistence.Slot{}, err
	}
	var err error
	if slot.Start, err = parseTime(start); err != nil {
		return persistence.Slot{}, err
	}
	if slot.End, err = parseTime(end); err != nil {
		return persistence.Slot{}, err
	}
	if slot.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Slot{}, err
	}
	return slot, nil
}
