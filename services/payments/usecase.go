package payments

import (
	"context"

	"github.com/mealyhq/payments-service/internal/pkg/models"
)

//go:generate mockgen -destination=mocks/mock_usecase.go -package=mocks github.com/mealyhq/payments-service/services/payments PaymentUC

// PaymentUC represents the payment usecase interface
type PaymentUC interface {
	// InitiatePayment validates the request, sends the STK push and records a
	// pending attempt in the ledger
	InitiatePayment(ctx context.Context, req *models.InitiatePaymentRequest) (*models.InitiatePaymentResponse, error)

	// GetPaymentStatus returns the current snapshot for a checkout request,
	// querying the gateway and reconciling when the attempt is still pending
	GetPaymentStatus(ctx context.Context, checkoutRequestID string) (*models.PaymentAttempt, error)

	// ProcessCallback reconciles an asynchronous gateway confirmation
	ProcessCallback(ctx context.Context, envelope *models.CallbackEnvelope) error

	// WatchPayment polls the gateway until the attempt reaches a terminal
	// state, the attempt budget runs out (ErrPollExhausted) or ctx is cancelled
	WatchPayment(ctx context.Context, checkoutRequestID string) (*models.PaymentAttempt, error)

	// ListPayments returns all attempts, newest first
	ListPayments(ctx context.Context) ([]*models.PaymentAttempt, error)
}
