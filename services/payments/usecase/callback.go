package usecase

import (
	"context"
	"strconv"

	"github.com/mealyhq/payments-service/internal/pkg/logger"
	"github.com/mealyhq/payments-service/internal/pkg/models"
	"github.com/mealyhq/payments-service/services/payments"
)

// Metadata item names the gateway attaches to successful callbacks
const (
	metadataAmount          = "Amount"
	metadataReceiptNumber   = "MpesaReceiptNumber"
	metadataPhoneNumber     = "PhoneNumber"
	metadataTransactionDate = "TransactionDate"
)

// ProcessCallback folds an asynchronous gateway confirmation into the ledger.
// A malformed envelope returns ErrCallbackMalformed so the handler can ack
// with ResultCode 1; anything parseable is reconciled even when the metadata
// is partially missing.
func (u *PaymentUC) ProcessCallback(ctx context.Context, envelope *models.CallbackEnvelope) error {
	if envelope == nil || envelope.Body.STKCallback == nil {
		return payments.ErrCallbackMalformed
	}

	callback := envelope.Body.STKCallback
	if callback.CheckoutRequestID == "" || callback.ResultCode == nil {
		return payments.ErrCallbackMalformed
	}

	event := &models.ReconciliationEvent{
		Source:            models.SourceCallback,
		CheckoutRequestID: callback.CheckoutRequestID,
		ResultCode:        strconv.Itoa(*callback.ResultCode),
		ResultDesc:        callback.ResultDesc,
	}

	if callback.CallbackMetadata != nil {
		extractCallbackMetadata(callback.CallbackMetadata.Item, event)
	}

	logger.Debug("Processing gateway callback",
		logger.String("checkout_request_id", event.CheckoutRequestID),
		logger.String("result_code", event.ResultCode))

	_, err := u.applyReconciliation(ctx, event)
	return err
}

// extractCallbackMetadata pulls known items out of the metadata list. Values
// arrive untyped from JSON (numbers decode as float64), so each item is
// coerced leniently; unknown or malformed items are skipped rather than
// failing the whole callback.
func extractCallbackMetadata(items []models.CallbackItem, event *models.ReconciliationEvent) {
	for _, item := range items {
		switch item.Name {
		case metadataAmount:
			if amount, ok := item.Value.(float64); ok {
				event.Amount = amount
			}
		case metadataReceiptNumber:
			if receipt, ok := item.Value.(string); ok {
				event.ReceiptNumber = receipt
			}
		case metadataPhoneNumber:
			event.PhoneNumber = stringifyMetadataValue(item.Value)
		case metadataTransactionDate:
			event.TransactionDate = stringifyMetadataValue(item.Value)
		}
	}
}

// stringifyMetadataValue renders a metadata value as a string. The gateway
// sends phone numbers and dates as JSON numbers.
func stringifyMetadataValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
