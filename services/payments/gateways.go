package payments

import (
	"context"

	"github.com/mealyhq/payments-service/internal/pkg/models"
)

//go:generate mockgen -destination=mocks/mock_gateway.go -package=mocks github.com/mealyhq/payments-service/services/payments PaymentGW

// PaymentGW defines the payment gateways interface
type PaymentGW interface {
	// NATS Gateway
	PublishPaymentOutcome(ctx context.Context, event *models.PaymentOutcomeEvent) error
}

// MpesaClient is the Daraja gateway transport. It moves bytes and maps
// transport failures; it never decides business status.
type MpesaClient interface {
	// InitiateSTKPush sends the push prompt to the customer's handset.
	// Amount limits and cent precision are enforced locally before any
	// network call.
	InitiateSTKPush(ctx context.Context, phoneNumber string, amount float64, accountReference, description string) (*models.STKPushResponse, error)

	// QuerySTKStatus fetches the raw status of a previous push
	QuerySTKStatus(ctx context.Context, checkoutRequestID string) (*models.STKQueryResponse, error)
}
