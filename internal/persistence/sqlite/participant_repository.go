package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/date-booking/internal/persistence"
)

// ParticipantRepository implements persistence.ParticipantRepository using SQLite
type ParticipantRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewParticipantRepository creates a new SQLite participant repository
func NewParticipantRepository(pool *ConnectionPool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool, mapper: NewErrorMapper()}
}

// UpsertParticipant creates or replaces a profile without touching its penalty.
func (r *ParticipantRepository) UpsertParticipant(ctx context.Context, participant persistence.Participant) error {
	if participant.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO participants (id, display_name, email, latitude, longitude, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				display_name = excluded.display_name,
				email = excluded.email,
				latitude = excluded.latitude,
				longitude = excluded.longitude,
				updated_at = excluded.updated_at
		`,
			participant.ID,
			participant.DisplayName,
			participant.Email,
			nullFloat(participant.Latitude),
			nullFloat(participant.Longitude),
			formatTime(participant.UpdatedAt),
		)
		return r.mapper.MapError(err)
	})
}

// GetParticipant retrieves a participant profile.
func (r *ParticipantRepository) GetParticipant(ctx context.Context, id string) (persistence.Participant, error) {
	var (
		participant         persistence.Participant
		latitude, longitude sql.NullFloat64
		penalizedUntil      sql.NullString
		updatedAt           string
	)
	err := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, display_name, email, latitude, longitude, penalized_until, updated_at
		FROM participants WHERE id = ?
	`, id).Scan(&participant.ID, &participant.DisplayName, &participant.Email, &latitude, &longitude, &penalizedUntil, &updatedAt)
	if err != nil {
		return persistence.Participant{}, r.mapper.MapError(err)
	}
	participant.Latitude = floatPtr(latitude)
	participant.Longitude = floatPtr(longitude)
	if participant.PenalizedUntil, err = parseNullTime(penalizedUntil); err != nil {
		return persistence.Participant{}, err
	}
	if participant.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Participant{}, err
	}
	return participant, nil
}

// SetPenalty records a penalty expiry, creating a bare profile when needed.
func (r *ParticipantRepository) SetPenalty(ctx context.Context, id string, until time.Time) error {
	if id == "" {
		return persistence.ErrConstraintViolation
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO participants (id, penalized_until, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET penalized_until = excluded.penalized_until
		`, id, nullTime(&until), formatTime(until))
		return r.mapper.MapError(err)
	})
}
