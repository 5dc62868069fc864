package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mealyhq/payments-service/internal/pkg/constants"
	"github.com/mealyhq/payments-service/internal/pkg/logger"
	"github.com/mealyhq/payments-service/internal/pkg/models"
	natspkg "github.com/mealyhq/payments-service/internal/pkg/nats"
)

// PaymentGW implements the payments.PaymentGW interface over NATS
type PaymentGW struct {
	natsClient *natspkg.Client
}

// NewPaymentGW creates a new payment gateway instance
func NewPaymentGW(natsClient *natspkg.Client) *PaymentGW {
	return &PaymentGW{natsClient: natsClient}
}

// outcomeSubject maps a terminal status to its NATS subject
func outcomeSubject(status models.PaymentStatus) string {
	switch status {
	case models.PaymentStatusCompleted:
		return constants.SubjectPaymentCompleted
	case models.PaymentStatusCancelled:
		return constants.SubjectPaymentCancelled
	case models.PaymentStatusTimeout:
		return constants.SubjectPaymentTimeout
	default:
		return constants.SubjectPaymentFailed
	}
}

// PublishPaymentOutcome publishes a terminal payment event for downstream
// consumers, one subject per terminal status
func (g *PaymentGW) PublishPaymentOutcome(ctx context.Context, event *models.PaymentOutcomeEvent) error {
	subject := outcomeSubject(event.Status)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payment outcome event: %w", err)
	}

	if err := g.natsClient.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish payment outcome event: %w", err)
	}

	logger.Debug("Published payment outcome event",
		logger.String("subject", subject),
		logger.String("checkout_request_id", event.CheckoutRequestID),
		logger.String("status", string(event.Status)))

	return nil
}
