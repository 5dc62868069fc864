package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mealyhq/payments-service/internal/pkg/logger"
	"github.com/mealyhq/payments-service/internal/pkg/models"
	"github.com/mealyhq/payments-service/internal/utils"
	"github.com/mealyhq/payments-service/services/payments"
	"github.com/mealyhq/payments-service/services/payments/mpesa"
)

const (
	defaultDescription = "Mealy food order payment"

	// snapshotCacheTTL bounds how long a terminal snapshot is served from
	// Redis. Terminal records never change, so the TTL only limits memory.
	snapshotCacheTTL = 24 * time.Hour
)

// InitiatePayment validates the request, sends the STK push and records a
// pending attempt keyed by the gateway's checkout request ID.
func (u *PaymentUC) InitiatePayment(ctx context.Context, req *models.InitiatePaymentRequest) (*models.InitiatePaymentResponse, error) {
	phone, err := utils.NormalizeMSISDN(req.PhoneNumber)
	if err != nil {
		return nil, payments.ErrInvalidPhone
	}

	// Reject bad amounts before touching the network
	if _, err := mpesa.AmountToMinorUnits(req.Amount); err != nil {
		return nil, err
	}

	reference := req.OrderReference
	if reference == "" {
		reference = fmt.Sprintf("MEALY_%s_%d", req.CustomerID, u.now().UnixMilli())
	}

	description := req.Description
	if description == "" {
		description = defaultDescription
	}

	resp, err := u.gateway.InitiateSTKPush(ctx, phone, req.Amount, reference, description)
	if err != nil {
		return nil, err
	}

	attempt := &models.PaymentAttempt{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerID:        req.CustomerID,
		OrderReference:    reference,
		PhoneNumber:       phone,
		Amount:            req.Amount,
		Status:            models.PaymentStatusPending,
		CreatedAt:         u.now(),
	}

	if err := u.repo.CreateAttempt(ctx, attempt); err != nil {
		// The push already went out; losing the ledger record here means the
		// callback will have nothing to reconcile against.
		logger.Error("Failed to record initiated payment attempt",
			logger.Err(err),
			logger.String("checkout_request_id", resp.CheckoutRequestID))
		return nil, fmt.Errorf("failed to record payment attempt: %w", err)
	}

	logger.Info("Payment attempt created",
		logger.String("checkout_request_id", attempt.CheckoutRequestID),
		logger.String("order_reference", attempt.OrderReference),
		logger.String("phone_number", attempt.PhoneNumber),
		logger.Float64("amount", attempt.Amount))

	return &models.InitiatePaymentResponse{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

// GetPaymentStatus returns the current snapshot for a checkout request.
// Terminal attempts are served from cache/ledger; pending attempts trigger a
// gateway query whose result is reconciled before returning. A transport
// failure during the query is not fatal: the pending snapshot is returned and
// the next poll retries.
func (u *PaymentUC) GetPaymentStatus(ctx context.Context, checkoutRequestID string) (*models.PaymentAttempt, error) {
	if cached := u.cachedSnapshot(ctx, checkoutRequestID); cached != nil {
		return cached, nil
	}

	attempt, err := u.repo.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}

	if attempt.Status.IsTerminal() {
		u.cacheSnapshot(ctx, attempt)
		return attempt, nil
	}

	resp, err := u.gateway.QuerySTKStatus(ctx, checkoutRequestID)
	if err != nil {
		logger.Warn("Status query failed, keeping pending snapshot",
			logger.Err(err),
			logger.String("checkout_request_id", checkoutRequestID))
		return attempt, nil
	}

	event := &models.ReconciliationEvent{
		Source:            models.SourcePoll,
		CheckoutRequestID: checkoutRequestID,
		ResultCode:        resp.ResultCode,
		ResultDesc:        resp.ResultDesc,
	}

	return u.applyReconciliation(ctx, event)
}

// ListPayments returns all attempts, newest first
func (u *PaymentUC) ListPayments(ctx context.Context) ([]*models.PaymentAttempt, error) {
	return u.repo.ListAttempts(ctx)
}

// cachedSnapshot returns a terminal snapshot from Redis, or nil
func (u *PaymentUC) cachedSnapshot(ctx context.Context, checkoutRequestID string) *models.PaymentAttempt {
	if u.cache == nil {
		return nil
	}

	data, err := u.cache.Get(ctx, snapshotCacheKey(checkoutRequestID))
	if err != nil {
		return nil
	}

	var attempt models.PaymentAttempt
	if err := json.Unmarshal([]byte(data), &attempt); err != nil {
		logger.Warn("Discarding unreadable cached snapshot",
			logger.Err(err),
			logger.String("checkout_request_id", checkoutRequestID))
		return nil
	}

	return &attempt
}

// cacheSnapshot stores a terminal snapshot in Redis. Only terminal attempts
// are cached; they are immutable so staleness is not possible.
func (u *PaymentUC) cacheSnapshot(ctx context.Context, attempt *models.PaymentAttempt) {
	if u.cache == nil || !attempt.Status.IsTerminal() {
		return
	}

	data, err := json.Marshal(attempt)
	if err != nil {
		return
	}

	if err := u.cache.Set(ctx, snapshotCacheKey(attempt.CheckoutRequestID), data, snapshotCacheTTL); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Failed to cache payment snapshot",
			logger.Err(err),
			logger.String("checkout_request_id", attempt.CheckoutRequestID))
	}
}

func snapshotCacheKey(checkoutRequestID string) string {
	return "payments:attempt:" + checkoutRequestID
}
