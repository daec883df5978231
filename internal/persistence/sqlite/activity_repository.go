package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/date-booking/internal/persistence"
)

// ActivityRepository implements persistence.ActivityRepository using SQLite
type ActivityRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewActivityRepository creates a new SQLite activity repository
func NewActivityRepository(pool *ConnectionPool) *ActivityRepository {
	return &ActivityRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateActivity inserts a feed entry.
func (r *ActivityRepository) CreateActivity(ctx context.Context, activity persistence.Activity) error {
	if activity.ID == "" || activity.RecipientID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO activities (id, recipient_id, type, content, reference_id, is_read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, activity.ID, activity.RecipientID, activity.Type, activity.Content, nullString(activity.ReferenceID), activity.IsRead, formatTime(activity.CreatedAt))
		return r.mapper.MapError(err)
	})
}

// ListActivities returns the recipient's activities, newest first.
func (r *ActivityRepository) ListActivities(ctx context.Context, recipientID string) ([]persistence.Activity, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, recipient_id, type, content, reference_id, is_read, created_at
		FROM activities
		WHERE recipient_id = ?
		ORDER BY created_at DESC, id DESC
	`, recipientID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	activities := make([]persistence.Activity, 0)
	for rows.Next() {
		var (
			activity    persistence.Activity
			referenceID sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&activity.ID, &activity.RecipientID, &activity.Type, &activity.Content, &referenceID, &activity.IsRead, &createdAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		activity.ReferenceID = stringPtr(referenceID)
		if activity.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return activities, nil
}

// MarkActivitiesRead marks every unread activity of the recipient as read.
func (r *ActivityRepository) MarkActivitiesRead(ctx context.Context, recipientID string) (int, error) {
	var updated int64
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE activities SET is_read = 1 WHERE recipient_id = ? AND is_read = 0`, recipientID)
		if err != nil {
			return r.mapper.MapError(err)
		}
		updated, err = result.RowsAffected()
		return r.mapper.MapError(err)
	})
	return int(updated), err
}
