package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/mealyhq/payments-service/internal/pkg/logger"
	"github.com/mealyhq/payments-service/internal/pkg/models"
	"github.com/mealyhq/payments-service/services/payments"
)

const (
	defaultPollInterval = 6 * time.Second
	defaultMaxAttempts  = 20
)

// WatchPayment polls the attempt until it reaches a terminal status, the
// attempt budget runs out, or the context is cancelled. The first poll fires
// immediately. On exhaustion the last pending snapshot is returned alongside
// ErrPollExhausted; the callback may still resolve the attempt later.
func (u *PaymentUC) WatchPayment(ctx context.Context, checkoutRequestID string) (*models.PaymentAttempt, error) {
	interval := defaultPollInterval
	maxAttempts := defaultMaxAttempts
	if u.cfg != nil {
		if u.cfg.Polling.IntervalSeconds > 0 {
			interval = time.Duration(u.cfg.Polling.IntervalSeconds) * time.Second
		}
		if u.cfg.Polling.MaxAttempts > 0 {
			maxAttempts = u.cfg.Polling.MaxAttempts
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *models.PaymentAttempt
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		snapshot, err := u.GetPaymentStatus(ctx, checkoutRequestID)
		if err != nil {
			if errors.Is(err, payments.ErrAttemptNotFound) || ctx.Err() != nil {
				return nil, err
			}
			// Transient lookup failure; keep polling
			logger.Warn("Poll iteration failed",
				logger.Err(err),
				logger.String("checkout_request_id", checkoutRequestID),
				logger.Int("attempt", attempt))
		} else {
			last = snapshot
			if snapshot.Status.IsTerminal() {
				return snapshot, nil
			}
		}

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}

	logger.Warn("Polling exhausted without a terminal status",
		logger.String("checkout_request_id", checkoutRequestID),
		logger.Int("max_attempts", maxAttempts))

	return last, payments.ErrPollExhausted
}
