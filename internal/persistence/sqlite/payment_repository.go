package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/date-booking/internal/persistence"
)

// PaymentRepository implements persistence.PaymentRepository using SQLite
type PaymentRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewPaymentRepository creates a new SQLite payment repository
func NewPaymentRepository(pool *ConnectionPool) *PaymentRepository {
	return &PaymentRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreatePayment inserts a provider transaction.
func (r *PaymentRepository) CreatePayment(ctx context.Context, payment persistence.Payment) error {
	if payment.TxnRef == "" {
		return persistence.ErrConstraintViolation
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO payments (txn_ref, booking_id, user_id, amount, status, provider_response, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			payment.TxnRef,
			payment.BookingID,
			payment.UserID,
			payment.Amount,
			payment.Status,
			nullString(payment.ProviderResponse),
			formatTime(payment.CreatedAt),
			formatTime(payment.UpdatedAt),
		)
		return r.mapper.MapError(err)
	})
}

// GetPayment retrieves a payment by transaction reference.
func (r *PaymentRepository) GetPayment(ctx context.Context, txnRef string) (persistence.Payment, error) {
	var (
		payment              persistence.Payment
		providerResponse     sql.NullString
		createdAt, updatedAt string
	)
	err := r.pool.DB().QueryRowContext(ctx, `
		SELECT txn_ref, booking_id, user_id, amount, status, provider_response, created_at, updated_at
		FROM payments WHERE txn_ref = ?
	`, txnRef).Scan(
		&payment.TxnRef,
		&payment.BookingID,
		&payment.UserID,
		&payment.Amount,
		&payment.Status,
		&providerResponse,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Payment{}, r.mapper.MapError(err)
	}
	payment.ProviderResponse = stringPtr(providerResponse)
	if payment.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Payment{}, err
	}
	if payment.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Payment{}, err
	}
	return payment, nil
}

// TransitionPayment changes the payment status when it currently equals from.
func (r *PaymentRepository) TransitionPayment(ctx context.Context, txnRef, from, to string, providerResponse *string, at time.Time) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE payments SET status = ?, provider_response = ?, updated_at = ?
			WHERE txn_ref = ? AND status = ?
		`, to, nullString(providerResponse), formatTime(at), txnRef, from)
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
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM payments WHERE txn_ref = ?`, txnRef).Scan(&exists); err != nil {
			return r.mapper.MapError(err)
		}
		return persistence.ErrVersionConflict
	})
}

// HasSuccessfulPayment reports whether the user completed a payment for the booking.
func (r *PaymentRepository) HasSuccessfulPayment(ctx context.Context, bookingID, userID string) (bool, error) {
	var count int
	err := r.pool.DB().QueryRowContext(ctx, `
		SELECT COUNT(1) FROM payments WHERE booking_id = ? AND user_id = ? AND status = ?
	`, bookingID, userID, persistence.PaymentStatusSuccess).Scan(&count)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return count > 0, nil
}
