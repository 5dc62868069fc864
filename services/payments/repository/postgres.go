package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mealyhq/payments-service/internal/pkg/models"
	"github.com/mealyhq/payments-service/services/payments"
)

// PaymentRepo is the Postgres-backed transaction ledger
type PaymentRepo struct {
	db *sqlx.DB
}

// NewPaymentRepo creates a new payment repository instance
func NewPaymentRepo(db *sqlx.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

// terminalTimestampColumn maps a terminal status to the ledger column that
// records when it was reached. Exactly one of these is ever set per attempt.
func terminalTimestampColumn(status models.PaymentStatus) (string, error) {
	switch status {
	case models.PaymentStatusCompleted:
		return "completed_at", nil
	case models.PaymentStatusCancelled:
		return "cancelled_at", nil
	case models.PaymentStatusTimeout:
		return "timeout_at", nil
	case models.PaymentStatusFailed:
		return "failed_at", nil
	default:
		return "", fmt.Errorf("status %q is not terminal", status)
	}
}

// CreateAttempt stores a new pending attempt
func (r *PaymentRepo) CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	if attempt.Status == "" {
		attempt.Status = models.PaymentStatusPending
	}

	query := `
		INSERT INTO payment_attempts (
			id, checkout_request_id, merchant_request_id, customer_id,
			order_reference, phone_number, amount, status,
			result_code, result_description, receipt_number, created_at
		) VALUES (
			:id, :checkout_request_id, :merchant_request_id, :customer_id,
			:order_reference, :phone_number, :amount, :status,
			:result_code, :result_description, :receipt_number, :created_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, attempt)
	if err != nil {
		return fmt.Errorf("failed to insert payment attempt: %w", err)
	}

	return nil
}

// GetByCheckoutRequestID returns the attempt for the gateway correlation id
func (r *PaymentRepo) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.PaymentAttempt, error) {
	query := `
		SELECT id, checkout_request_id, merchant_request_id, customer_id,
			order_reference, phone_number, amount, status,
			result_code, result_description, receipt_number,
			created_at, completed_at, cancelled_at, timeout_at, failed_at
		FROM payment_attempts
		WHERE checkout_request_id = $1
	`

	var attempt models.PaymentAttempt
	err := r.db.GetContext(ctx, &attempt, query, checkoutRequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payments.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get payment attempt: %w", err)
	}

	return &attempt, nil
}

// ListAttempts returns all attempts ordered newest first
func (r *PaymentRepo) ListAttempts(ctx context.Context) ([]*models.PaymentAttempt, error) {
	query := `
		SELECT id, checkout_request_id, merchant_request_id, customer_id,
			order_reference, phone_number, amount, status,
			result_code, result_description, receipt_number,
			created_at, completed_at, cancelled_at, timeout_at, failed_at
		FROM payment_attempts
		ORDER BY created_at DESC
	`

	attempts := []*models.PaymentAttempt{}
	if err := r.db.SelectContext(ctx, &attempts, query); err != nil {
		return nil, fmt.Errorf("failed to list payment attempts: %w", err)
	}

	return attempts, nil
}

// UpdateStatusIfPending atomically moves a pending attempt to a terminal
// status. The WHERE status = 'pending' clause is the compare-and-set that
// keeps a racing callback and poll from double-transitioning the record.
func (r *PaymentRepo) UpdateStatusIfPending(ctx context.Context, checkoutRequestID string, status models.PaymentStatus, resultCode, resultDesc, receiptNumber string, at time.Time) (bool, error) {
	column, err := terminalTimestampColumn(status)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
		UPDATE payment_attempts
		SET status = $1, result_code = $2, result_description = $3,
			receipt_number = $4, %s = $5
		WHERE checkout_request_id = $6 AND status = 'pending'
	`, column)

	res, err := r.db.ExecContext(ctx, query, status, resultCode, resultDesc, receiptNumber, at, checkoutRequestID)
	if err != nil {
		return false, fmt.Errorf("failed to update payment attempt: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	// Nothing updated: either the attempt is unknown or already terminal
	if _, err := r.GetByCheckoutRequestID(ctx, checkoutRequestID); err != nil {
		return false, err
	}

	return false, nil
}
