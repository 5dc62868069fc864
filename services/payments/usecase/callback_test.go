package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealyhq/payments-service/internal/pkg/models"
	"github.com/mealyhq/payments-service/services/payments"
)

func successCallback(checkoutRequestID string) *models.CallbackEnvelope {
	payload := `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-1",
				"CheckoutRequestID": "` + checkoutRequestID + `",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 100},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "TransactionDate", "Value": 20250315143045},
						{"Name": "PhoneNumber", "Value": 254712345678}
					]
				}
			}
		}
	}`

	var envelope models.CallbackEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		panic(err)
	}
	return &envelope
}

func resultCode(code int) *int {
	return &code
}

func cancelledCallback(checkoutRequestID string) *models.CallbackEnvelope {
	envelope := &models.CallbackEnvelope{}
	envelope.Body.STKCallback = &models.STKCallback{
		MerchantRequestID: "29115-1",
		CheckoutRequestID: checkoutRequestID,
		ResultCode:        resultCode(1032),
		ResultDesc:        "Request cancelled by user",
	}
	return envelope
}

func initiatePending(t *testing.T, uc *PaymentUC) {
	t.Helper()
	_, err := uc.InitiatePayment(context.Background(), &models.InitiatePaymentRequest{
		CustomerID: "cust-42", PhoneNumber: "0712345678", Amount: 100,
	})
	require.NoError(t, err)
}

func TestProcessCallbackCompletesAttempt(t *testing.T) {
	gateway := &fakeMpesaClient{pushResp: acceptedPush("ws_CO_1")}
	uc, repo, publisher := setupPaymentUC(gateway)
	initiatePending(t, uc)

	err := uc.ProcessCallback(context.Background(), successCallback("ws_CO_1"))
	require.NoError(t, err)

	attempt, err := repo.GetByCheckoutRequestID(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, attempt.Status)
	assert.Equal(t, "0", attempt.ResultCode)
	assert.Equal(t, "NLJ7RT61SV", attempt.ReceiptNumber)
	assert.NotNil(t, attempt.CompletedAt)

	events := publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, models.PaymentStatusCompleted, events[0].Status)
	assert.Equal(t, "NLJ7RT61SV", events[0].ReceiptNumber)
}

func TestProcessCallbackCancellation(t *testing.T) {
	gateway := &fakeMpesaClient{pushResp: acceptedPush("ws_CO_1")}
	uc, repo, _ := setupPaymentUC(gateway)
	initiatePending(t, uc)

	err := uc.ProcessCallback(context.Background(), cancelledCallback("ws_CO_1"))
	require.NoError(t, err)

	attempt, err := repo.GetByCheckoutRequestID(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCancelled, attempt.Status)
	assert.Equal(t, "1032", attempt.ResultCode)
	assert.Empty(t, attempt.ReceiptNumber)
}

func TestProcessCallbackDuplicateDelivery(t *testing.T) {
	gateway := &fakeMpesaClient{pushResp: acceptedPush("ws_CO_1")}
	uc, _, publisher := setupPaymentUC(gateway)
	initiatePending(t, uc)

	require.NoError(t, uc.ProcessCallback(context.Background(), successCallback("ws_CO_1")))
	require.NoError(t, uc.ProcessCallback(context.Background(), successCallback("ws_CO_1")))

	// Redelivery is idempotent: one transition, one event
	assert.Len(t, publisher.published(), 1)
}

func TestProcessCallbackConflictAfterPollWins(t *testing.T) {
	gateway := &fakeMpesaClient{
		pushResp: acceptedPush("ws_CO_1"),
		queryResp: &models.STKQueryResponse{
			CheckoutRequestID: "ws_CO_1",
			ResultCode:        models.ResultCodeCancelledByUser,
			ResultDesc:        "Request cancelled by user",
		},
	}
	uc, repo, publisher := setupPaymentUC(gateway)
	initiatePending(t, uc)

	// A poll records the cancellation first
	_, err := uc.GetPaymentStatus(context.Background(), "ws_CO_1")
	require.NoError(t, err)

	// A conflicting success callback arrives later and is discarded
	require.NoError(t, uc.ProcessCallback(context.Background(), successCallback("ws_CO_1")))

	attempt, err := repo.GetByCheckoutRequestID(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCancelled, attempt.Status)
	assert.Empty(t, attempt.ReceiptNumber)
	assert.Len(t, publisher.published(), 1)
}

func TestProcessCallbackMalformed(t *testing.T) {
	gateway := &fakeMpesaClient{}
	uc, _, _ := setupPaymentUC(gateway)

	testCases := []struct {
		name     string
		envelope *models.CallbackEnvelope
	}{
		{name: "nil envelope", envelope: nil},
		{name: "missing stkCallback", envelope: &models.CallbackEnvelope{}},
		{
			name: "missing checkout request id",
			envelope: func() *models.CallbackEnvelope {
				e := &models.CallbackEnvelope{}
				e.Body.STKCallback = &models.STKCallback{ResultCode: resultCode(0)}
				return e
			}(),
		},
		{
			name: "missing result code",
			envelope: func() *models.CallbackEnvelope {
				e := &models.CallbackEnvelope{}
				e.Body.STKCallback = &models.STKCallback{
					CheckoutRequestID: "ws_CO_1",
					ResultDesc:        "garbled",
				}
				return e
			}(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := uc.ProcessCallback(context.Background(), tc.envelope)
			assert.ErrorIs(t, err, payments.ErrCallbackMalformed)
		})
	}
}

func TestProcessCallbackWithoutResultCodeLeavesAttemptPending(t *testing.T) {
	gateway := &fakeMpesaClient{pushResp: acceptedPush("ws_CO_1")}
	uc, repo, publisher := setupPaymentUC(gateway)
	initiatePending(t, uc)

	// JSON decoding leaves ResultCode nil when the field is absent; that must
	// never be read as success.
	payload := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultDesc":"garbled"}}}`
	var envelope models.CallbackEnvelope
	require.NoError(t, json.Unmarshal([]byte(payload), &envelope))

	err := uc.ProcessCallback(context.Background(), &envelope)
	assert.ErrorIs(t, err, payments.ErrCallbackMalformed)

	attempt, err := repo.GetByCheckoutRequestID(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, attempt.Status)
	assert.Empty(t, publisher.published())
}

func TestProcessCallbackUnknownAttempt(t *testing.T) {
	gateway := &fakeMpesaClient{}
	uc, _, _ := setupPaymentUC(gateway)

	err := uc.ProcessCallback(context.Background(), successCallback("ws_CO_unknown"))
	assert.ErrorIs(t, err, payments.ErrAttemptNotFound)
}

func TestExtractCallbackMetadata(t *testing.T) {
	event := &models.ReconciliationEvent{}
	extractCallbackMetadata([]models.CallbackItem{
		{Name: "Amount", Value: float64(350.5)},
		{Name: "MpesaReceiptNumber", Value: "NLJ7RT61SV"},
		{Name: "PhoneNumber", Value: float64(254712345678)},
		{Name: "TransactionDate", Value: float64(20250315143045)},
		{Name: "Balance"},
		{Name: "Unknown", Value: []int{1, 2}},
	}, event)

	assert.Equal(t, 350.5, event.Amount)
	assert.Equal(t, "NLJ7RT61SV", event.ReceiptNumber)
	assert.Equal(t, "254712345678", event.PhoneNumber)
	assert.Equal(t, "20250315143045", event.TransactionDate)
}
