package usecase

import (
	"time"

	"github.com/mealyhq/payments-service/internal/pkg/database"
	"github.com/mealyhq/payments-service/internal/pkg/models"
	"github.com/mealyhq/payments-service/services/payments"
)

// PaymentUC implements the payments.PaymentUC interface
type PaymentUC struct {
	cfg     *models.Config
	repo    payments.PaymentRepo
	gw      payments.PaymentGW
	gateway payments.MpesaClient
	cache   *database.RedisClient
	now     func() time.Time
}

// NewPaymentUC creates a new payment usecase instance. The Redis cache is
// optional; a nil cache disables snapshot caching.
func NewPaymentUC(
	cfg *models.Config,
	repo payments.PaymentRepo,
	gw payments.PaymentGW,
	gateway payments.MpesaClient,
	cache *database.RedisClient,
) *PaymentUC {
	return &PaymentUC{
		cfg:     cfg,
		repo:    repo,
		gw:      gw,
		gateway: gateway,
		cache:   cache,
		now:     time.Now,
	}
}
