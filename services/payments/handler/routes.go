package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/mealyhq/payments-service/internal/pkg/middleware"
	"github.com/mealyhq/payments-service/internal/pkg/models"
	"github.com/mealyhq/payments-service/services/payments/handler/http"
)

// Handler coordinates the HTTP handlers for the payment service
type Handler struct {
	paymentHandler *http.PaymentHandler
	cfg            *models.Config
}

// NewHandler creates and initializes all handlers
func NewHandler(paymentHandler *http.PaymentHandler, cfg *models.Config) *Handler {
	return &Handler{
		paymentHandler: paymentHandler,
		cfg:            cfg,
	}
}

// RegisterRoutes registers all payment routes.
// The webhook is guarded by the callback shared secret; everything else is
// internal service-to-service traffic guarded by API keys.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	mpesaGroup := e.Group("/payments/mpesa")

	// Gateway webhook (called by the payment gateway, not by internal services)
	mpesaGroup.POST("/callback", h.paymentHandler.HandleCallback,
		middleware.ValidateCallbackSecret(h.cfg.Mpesa.CallbackSecret))

	// Order-facing payment routes
	orderAuth := middleware.ValidateAPIKey(&h.cfg.APIKey, "order-service", "admin-portal")
	mpesaGroup.POST("/initiate", h.paymentHandler.InitiatePayment, orderAuth)
	mpesaGroup.GET("/status/:checkoutRequestId", h.paymentHandler.GetPaymentStatus, orderAuth)
	mpesaGroup.GET("/wait/:checkoutRequestId", h.paymentHandler.WaitForPayment, orderAuth)

	// Admin/ops routes
	adminAuth := middleware.ValidateAPIKey(&h.cfg.APIKey, "admin-portal")
	mpesaGroup.GET("/config", h.paymentHandler.GetGatewayConfig, adminAuth)

	paymentsGroup := e.Group("/payments")
	paymentsGroup.GET("/transactions", h.paymentHandler.ListPayments, adminAuth)
}
