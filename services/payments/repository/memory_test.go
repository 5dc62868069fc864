package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealyhq/payments-service/internal/pkg/models"
	"github.com/mealyhq/payments-service/services/payments"
)

func newPendingAttempt(checkoutRequestID string) *models.PaymentAttempt {
	return &models.PaymentAttempt{
		CheckoutRequestID: checkoutRequestID,
		CustomerID:        "cust-42",
		OrderReference:    "MEALY_ORDER_42",
		PhoneNumber:       "254712345678",
		Amount:            350,
	}
}

func TestMemoryRepoCreateAndGet(t *testing.T) {
	repo := NewMemoryPaymentRepo()

	err := repo.CreateAttempt(context.Background(), newPendingAttempt("ws_CO_1"))
	require.NoError(t, err)

	// Duplicate correlation IDs are rejected
	err = repo.CreateAttempt(context.Background(), newPendingAttempt("ws_CO_1"))
	assert.Error(t, err)

	attempt, err := repo.GetByCheckoutRequestID(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, attempt.Status)

	_, err = repo.GetByCheckoutRequestID(context.Background(), "ws_CO_missing")
	assert.ErrorIs(t, err, payments.ErrAttemptNotFound)
}

func TestMemoryRepoSnapshotsAreIsolated(t *testing.T) {
	repo := NewMemoryPaymentRepo()
	require.NoError(t, repo.CreateAttempt(context.Background(), newPendingAttempt("ws_CO_1")))

	first, err := repo.GetByCheckoutRequestID(context.Background(), "ws_CO_1")
	require.NoError(t, err)

	// Mutating a returned snapshot must not leak into the store
	first.Status = models.PaymentStatusFailed

	second, err := repo.GetByCheckoutRequestID(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, second.Status)
}

func TestMemoryRepoListNewestFirst(t *testing.T) {
	repo := NewMemoryPaymentRepo()

	older := newPendingAttempt("ws_CO_old")
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.CreateAttempt(context.Background(), older))

	newer := newPendingAttempt("ws_CO_new")
	newer.CreatedAt = time.Now()
	require.NoError(t, repo.CreateAttempt(context.Background(), newer))

	attempts, err := repo.ListAttempts(context.Background())
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "ws_CO_new", attempts[0].CheckoutRequestID)
	assert.Equal(t, "ws_CO_old", attempts[1].CheckoutRequestID)
}

func TestMemoryRepoFirstTerminalWriteWins(t *testing.T) {
	repo := NewMemoryPaymentRepo()
	require.NoError(t, repo.CreateAttempt(context.Background(), newPendingAttempt("ws_CO_1")))

	applied, err := repo.UpdateStatusIfPending(context.Background(), "ws_CO_1",
		models.PaymentStatusCancelled, "1032", "Request cancelled by user", "", time.Now())
	require.NoError(t, err)
	assert.True(t, applied)

	// A later success observation must not overwrite the recorded cancellation
	applied, err = repo.UpdateStatusIfPending(context.Background(), "ws_CO_1",
		models.PaymentStatusCompleted, "0", "Success", "NLJ7RT61SV", time.Now())
	require.NoError(t, err)
	assert.False(t, applied)

	attempt, err := repo.GetByCheckoutRequestID(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCancelled, attempt.Status)
	assert.Equal(t, "1032", attempt.ResultCode)
	assert.Empty(t, attempt.ReceiptNumber)
	assert.NotNil(t, attempt.CancelledAt)
	assert.Nil(t, attempt.CompletedAt)
}

func TestMemoryRepoConcurrentTerminalWrites(t *testing.T) {
	repo := NewMemoryPaymentRepo()
	require.NoError(t, repo.CreateAttempt(context.Background(), newPendingAttempt("ws_CO_race")))

	statuses := []models.PaymentStatus{
		models.PaymentStatusCompleted,
		models.PaymentStatusCancelled,
		models.PaymentStatusTimeout,
		models.PaymentStatusFailed,
	}

	var appliedCount int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(status models.PaymentStatus) {
			defer wg.Done()
			applied, err := repo.UpdateStatusIfPending(context.Background(), "ws_CO_race",
				status, "0", "race", "", time.Now())
			assert.NoError(t, err)
			if applied {
				atomic.AddInt32(&appliedCount, 1)
			}
		}(statuses[i%len(statuses)])
	}
	wg.Wait()

	// Exactly one racer transitions the attempt
	assert.Equal(t, int32(1), atomic.LoadInt32(&appliedCount))

	attempt, err := repo.GetByCheckoutRequestID(context.Background(), "ws_CO_race")
	require.NoError(t, err)
	assert.True(t, attempt.Status.IsTerminal())
}
