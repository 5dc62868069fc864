package payments

import (
	"context"
	"time"

	"github.com/mealyhq/payments-service/internal/pkg/models"
)

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks github.com/mealyhq/payments-service/services/payments PaymentRepo

// PaymentRepo is the transaction ledger. Records are append-only: attempts
// are created once, mutated only through the conditional status update and
// never deleted.
type PaymentRepo interface {
	// CreateAttempt stores a new pending attempt. The checkout request ID is
	// unique; a second insert for the same id fails.
	CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error

	// GetByCheckoutRequestID returns the attempt for the gateway correlation
	// id, or ErrAttemptNotFound
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.PaymentAttempt, error)

	// ListAttempts returns all attempts ordered newest first
	ListAttempts(ctx context.Context) ([]*models.PaymentAttempt, error)

	// UpdateStatusIfPending atomically moves a pending attempt to the given
	// terminal status, setting the matching terminal timestamp. It reports
	// false when the attempt was already terminal, leaving the record
	// untouched; the first terminal write wins.
	UpdateStatusIfPending(ctx context.Context, checkoutRequestID string, status models.PaymentStatus, resultCode, resultDesc, receiptNumber string, at time.Time) (bool, error)
}
