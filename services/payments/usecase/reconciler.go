package usecase

import (
	"context"

	"github.com/mealyhq/payments-service/internal/pkg/logger"
	"github.com/mealyhq/payments-service/internal/pkg/models"
)

// mapReconciliationStatus translates a gateway result code into the canonical
// status. The ResultCode is authoritative; textual descriptions are recorded
// but never interpreted. An empty code means the customer has not acted yet.
func mapReconciliationStatus(resultCode string) models.PaymentStatus {
	switch resultCode {
	case "":
		return models.PaymentStatusPending
	case models.ResultCodeSuccess:
		return models.PaymentStatusCompleted
	case models.ResultCodeCancelledByUser:
		return models.PaymentStatusCancelled
	case models.ResultCodeGatewayTimeout:
		return models.PaymentStatusTimeout
	default:
		// Insufficient funds, wrong PIN and any unrecognized code all fail
		// the attempt; the description carries the specifics.
		return models.PaymentStatusFailed
	}
}

// applyReconciliation folds a poll or callback observation into the ledger.
// The first terminal write wins; later conflicting observations are logged
// and discarded. Returns the post-reconciliation snapshot.
func (u *PaymentUC) applyReconciliation(ctx context.Context, event *models.ReconciliationEvent) (*models.PaymentAttempt, error) {
	status := mapReconciliationStatus(event.ResultCode)
	if status == models.PaymentStatusPending {
		return u.repo.GetByCheckoutRequestID(ctx, event.CheckoutRequestID)
	}

	if status == models.PaymentStatusCompleted && event.ReceiptNumber == "" {
		// A success without a receipt is suspicious but not fatal; the
		// attempt still completes and the gap is flagged for ops.
		logger.Warn("Completed payment has no receipt number",
			logger.String("checkout_request_id", event.CheckoutRequestID),
			logger.String("source", string(event.Source)))
	}

	applied, err := u.repo.UpdateStatusIfPending(ctx, event.CheckoutRequestID, status, event.ResultCode, event.ResultDesc, event.ReceiptNumber, u.now())
	if err != nil {
		return nil, err
	}

	attempt, err := u.repo.GetByCheckoutRequestID(ctx, event.CheckoutRequestID)
	if err != nil {
		return nil, err
	}

	if !applied {
		if attempt.Status != status {
			logger.Warn("Conflicting reconciliation discarded",
				logger.String("checkout_request_id", event.CheckoutRequestID),
				logger.String("source", string(event.Source)),
				logger.String("recorded_status", string(attempt.Status)),
				logger.String("discarded_status", string(status)),
				logger.String("discarded_result_code", event.ResultCode))
		} else {
			logger.Debug("Duplicate reconciliation ignored",
				logger.String("checkout_request_id", event.CheckoutRequestID),
				logger.String("source", string(event.Source)),
				logger.String("status", string(status)))
		}
		return attempt, nil
	}

	logger.Info("Payment attempt reached terminal status",
		logger.String("checkout_request_id", attempt.CheckoutRequestID),
		logger.String("order_reference", attempt.OrderReference),
		logger.String("status", string(attempt.Status)),
		logger.String("result_code", attempt.ResultCode),
		logger.String("receipt_number", attempt.ReceiptNumber),
		logger.String("source", string(event.Source)))

	u.publishOutcome(ctx, attempt)
	u.cacheSnapshot(ctx, attempt)

	return attempt, nil
}

// publishOutcome emits the terminal event for downstream consumers (order
// service, notifications). Publish failures are logged, not propagated: the
// ledger is the source of truth and consumers can reconcile from it.
func (u *PaymentUC) publishOutcome(ctx context.Context, attempt *models.PaymentAttempt) {
	if u.gw == nil {
		return
	}

	event := &models.PaymentOutcomeEvent{
		AttemptID:         attempt.ID,
		CheckoutRequestID: attempt.CheckoutRequestID,
		OrderReference:    attempt.OrderReference,
		CustomerID:        attempt.CustomerID,
		Status:            attempt.Status,
		Amount:            attempt.Amount,
		ReceiptNumber:     attempt.ReceiptNumber,
		ResultCode:        attempt.ResultCode,
		ResultDescription: attempt.ResultDescription,
		OccurredAt:        u.now(),
	}

	if err := u.gw.PublishPaymentOutcome(ctx, event); err != nil {
		logger.Error("Failed to publish payment outcome event",
			logger.Err(err),
			logger.String("checkout_request_id", attempt.CheckoutRequestID),
			logger.String("status", string(attempt.Status)))
	}
}
