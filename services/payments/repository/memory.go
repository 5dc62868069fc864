package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mealyhq/payments-service/internal/pkg/models"
	"github.com/mealyhq/payments-service/services/payments"
)

// MemoryPaymentRepo is an in-memory ledger with the same compare-and-set
// semantics as the Postgres implementation. Used by tests and sandbox runs.
type MemoryPaymentRepo struct {
	mu       sync.RWMutex
	attempts map[string]*models.PaymentAttempt
}

// NewMemoryPaymentRepo creates an empty in-memory ledger
func NewMemoryPaymentRepo() *MemoryPaymentRepo {
	return &MemoryPaymentRepo{
		attempts: make(map[string]*models.PaymentAttempt),
	}
}

// CreateAttempt stores a new pending attempt
func (r *MemoryPaymentRepo) CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.attempts[attempt.CheckoutRequestID]; exists {
		return fmt.Errorf("attempt already exists for checkout request %s", attempt.CheckoutRequestID)
	}

	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	if attempt.Status == "" {
		attempt.Status = models.PaymentStatusPending
	}

	stored := *attempt
	r.attempts[attempt.CheckoutRequestID] = &stored

	return nil
}

// GetByCheckoutRequestID returns a copy of the attempt so readers always
// observe a consistent snapshot
func (r *MemoryPaymentRepo) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attempt, exists := r.attempts[checkoutRequestID]
	if !exists {
		return nil, payments.ErrAttemptNotFound
	}

	snapshot := *attempt
	return &snapshot, nil
}

// ListAttempts returns all attempts ordered newest first
func (r *MemoryPaymentRepo) ListAttempts(ctx context.Context) ([]*models.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attempts := make([]*models.PaymentAttempt, 0, len(r.attempts))
	for _, attempt := range r.attempts {
		snapshot := *attempt
		attempts = append(attempts, &snapshot)
	}

	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].CreatedAt.After(attempts[j].CreatedAt)
	})

	return attempts, nil
}

// UpdateStatusIfPending atomically moves a pending attempt to a terminal
// status; the mutex plus the pending check give first-writer-wins.
func (r *MemoryPaymentRepo) UpdateStatusIfPending(ctx context.Context, checkoutRequestID string, status models.PaymentStatus, resultCode, resultDesc, receiptNumber string, at time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("status %q is not terminal", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, exists := r.attempts[checkoutRequestID]
	if !exists {
		return false, payments.ErrAttemptNotFound
	}

	if attempt.Status != models.PaymentStatusPending {
		return false, nil
	}

	attempt.Status = status
	attempt.ResultCode = resultCode
	attempt.ResultDescription = resultDesc
	attempt.ReceiptNumber = receiptNumber

	ts := at
	switch status {
	case models.PaymentStatusCompleted:
		attempt.CompletedAt = &ts
	case models.PaymentStatusCancelled:
		attempt.CancelledAt = &ts
	case models.PaymentStatusTimeout:
		attempt.TimeoutAt = &ts
	case models.PaymentStatusFailed:
		attempt.FailedAt = &ts
	}

	return true, nil
}
