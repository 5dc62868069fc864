package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealyhq/payments-service/internal/pkg/models"
	"github.com/mealyhq/payments-service/services/payments"
)

func TestWatchPaymentReturnsOnTerminalStatus(t *testing.T) {
	gateway := &fakeMpesaClient{
		pushResp: acceptedPush("ws_CO_1"),
		queryResp: &models.STKQueryResponse{
			CheckoutRequestID: "ws_CO_1",
			ResultCode:        models.ResultCodeSuccess,
			ResultDesc:        "The service request is processed successfully.",
		},
	}
	uc, _, publisher := setupPaymentUC(gateway)
	initiatePending(t, uc)

	// The first poll fires immediately, so a resolved attempt returns fast
	start := time.Now()
	attempt, err := uc.WatchPayment(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, attempt.Status)
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, publisher.published(), 1)
}

func TestWatchPaymentExhaustsAttempts(t *testing.T) {
	gateway := &fakeMpesaClient{
		pushResp:  acceptedPush("ws_CO_1"),
		queryResp: &models.STKQueryResponse{CheckoutRequestID: "ws_CO_1"},
	}
	uc, _, _ := setupPaymentUC(gateway)
	uc.cfg.Polling.IntervalSeconds = 1
	uc.cfg.Polling.MaxAttempts = 2
	initiatePending(t, uc)

	attempt, err := uc.WatchPayment(context.Background(), "ws_CO_1")
	assert.ErrorIs(t, err, payments.ErrPollExhausted)

	// The last pending snapshot accompanies the exhaustion error
	require.NotNil(t, attempt)
	assert.Equal(t, models.PaymentStatusPending, attempt.Status)
	assert.Equal(t, 2, gateway.queryCalls)
}

func TestWatchPaymentUnknownAttempt(t *testing.T) {
	gateway := &fakeMpesaClient{}
	uc, _, _ := setupPaymentUC(gateway)

	_, err := uc.WatchPayment(context.Background(), "ws_CO_missing")
	assert.ErrorIs(t, err, payments.ErrAttemptNotFound)
}

func TestWatchPaymentHonorsContextCancellation(t *testing.T) {
	gateway := &fakeMpesaClient{
		pushResp:  acceptedPush("ws_CO_1"),
		queryResp: &models.STKQueryResponse{CheckoutRequestID: "ws_CO_1"},
	}
	uc, _, _ := setupPaymentUC(gateway)
	uc.cfg.Polling.IntervalSeconds = 5
	uc.cfg.Polling.MaxAttempts = 20
	initiatePending(t, uc)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := uc.WatchPayment(ctx, "ws_CO_1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}
