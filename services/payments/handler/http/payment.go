package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mealyhq/payments-service/internal/pkg/logger"
	"github.com/mealyhq/payments-service/internal/pkg/models"
	"github.com/mealyhq/payments-service/internal/utils"
	"github.com/mealyhq/payments-service/services/payments"
)

// PaymentHandler handles HTTP requests for payment operations
type PaymentHandler struct {
	paymentUC payments.PaymentUC
	cfg       *models.Config
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentUC payments.PaymentUC, cfg *models.Config) *PaymentHandler {
	return &PaymentHandler{
		paymentUC: paymentUC,
		cfg:       cfg,
	}
}

// InitiatePayment handles STK push initiation requests
func (h *PaymentHandler) InitiatePayment(c echo.Context) error {
	var req models.InitiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		logger.Warn("Invalid request payload for payment initiation",
			logger.ErrorField(err),
			logger.String("endpoint", "InitiatePayment"),
		)
		return utils.BadRequestResponse(c, "Invalid request payload")
	}

	resp, err := h.paymentUC.InitiatePayment(c.Request().Context(), &req)
	if err != nil {
		return h.initiationErrorResponse(c, err)
	}

	return utils.SuccessResponse(c, http.StatusAccepted, "STK push sent, awaiting customer confirmation", resp)
}

// initiationErrorResponse maps initiation failures to HTTP statuses. Caller
// mistakes get 400, gateway rejections 502, transport trouble 503.
func (h *PaymentHandler) initiationErrorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, payments.ErrInvalidPhone), errors.Is(err, payments.ErrInvalidAmount):
		return utils.BadRequestResponse(c, err.Error())
	case errors.Is(err, payments.ErrAuthentication):
		logger.Error("Gateway authentication failed during initiation", logger.ErrorField(err))
		return utils.ErrorResponseHandler(c, http.StatusBadGateway, "Payment gateway authentication failed")
	case errors.Is(err, payments.ErrGatewayTimeout), errors.Is(err, payments.ErrNetwork):
		logger.Error("Gateway unreachable during initiation", logger.ErrorField(err))
		return utils.ServiceUnavailableResponse(c, "Payment gateway is unreachable, please retry")
	}

	if ge, ok := payments.AsGatewayError(err); ok {
		logger.Warn("Gateway rejected payment initiation",
			logger.String("gateway_code", ge.Code),
			logger.String("gateway_description", ge.Description),
		)
		return utils.ErrorResponseHandler(c, http.StatusBadGateway, ge.Error())
	}

	logger.Error("Failed to initiate payment", logger.ErrorField(err))
	return utils.InternalServerErrorResponse(c, "Failed to initiate payment")
}

// GetPaymentStatus handles status lookups by checkout request ID
func (h *PaymentHandler) GetPaymentStatus(c echo.Context) error {
	checkoutRequestID := c.Param("checkoutRequestId")
	if checkoutRequestID == "" {
		return utils.BadRequestResponse(c, "Invalid checkout request ID")
	}

	attempt, err := h.paymentUC.GetPaymentStatus(c.Request().Context(), checkoutRequestID)
	if err != nil {
		if errors.Is(err, payments.ErrAttemptNotFound) {
			return utils.NotFoundResponse(c, "Payment attempt not found")
		}
		logger.Error("Failed to retrieve payment status",
			logger.ErrorField(err),
			logger.String("checkout_request_id", checkoutRequestID),
		)
		return utils.InternalServerErrorResponse(c, "Failed to retrieve payment status")
	}

	return utils.SuccessResponse(c, http.StatusOK, "Payment status retrieved", attempt)
}

// WaitForPayment blocks until the attempt reaches a terminal status, the
// polling budget runs out or the caller disconnects. Exhaustion is not an
// error for the caller: the pending snapshot comes back with 202 and the
// advice to verify manually, since the callback may still resolve it.
func (h *PaymentHandler) WaitForPayment(c echo.Context) error {
	checkoutRequestID := c.Param("checkoutRequestId")
	if checkoutRequestID == "" {
		return utils.BadRequestResponse(c, "Invalid checkout request ID")
	}

	attempt, err := h.paymentUC.WatchPayment(c.Request().Context(), checkoutRequestID)
	switch {
	case err == nil:
		return utils.SuccessResponse(c, http.StatusOK, "Payment resolved", attempt)
	case errors.Is(err, payments.ErrAttemptNotFound):
		return utils.NotFoundResponse(c, "Payment attempt not found")
	case errors.Is(err, payments.ErrPollExhausted):
		return utils.SuccessResponse(c, http.StatusAccepted, "Payment still pending after polling, verify manually", attempt)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Caller went away mid-wait; nothing useful to write
		return err
	default:
		logger.Error("Failed waiting for payment status",
			logger.ErrorField(err),
			logger.String("checkout_request_id", checkoutRequestID),
		)
		return utils.InternalServerErrorResponse(c, "Failed to wait for payment status")
	}
}

// HandleCallback receives the asynchronous gateway confirmation. The gateway
// expects HTTP 200 on every delivery; a non-200 would trigger redelivery of a
// payload we already know we cannot use, so even malformed bodies are acked
// with ResultCode 1.
func (h *PaymentHandler) HandleCallback(c echo.Context) error {
	var envelope models.CallbackEnvelope
	if err := c.Bind(&envelope); err != nil {
		logger.Warn("Undecodable callback payload", logger.ErrorField(err))
		return c.JSON(http.StatusOK, models.CallbackAck{ResultCode: 1, ResultDesc: "Rejected"})
	}

	if err := h.paymentUC.ProcessCallback(c.Request().Context(), &envelope); err != nil {
		if errors.Is(err, payments.ErrCallbackMalformed) {
			logger.Warn("Malformed callback payload", logger.ErrorField(err))
			return c.JSON(http.StatusOK, models.CallbackAck{ResultCode: 1, ResultDesc: "Rejected"})
		}
		// Internal failure: still ack so the gateway does not hammer us; the
		// poller will reconcile the attempt.
		logger.Error("Failed to process callback", logger.ErrorField(err))
	}

	return c.JSON(http.StatusOK, models.CallbackAck{ResultCode: 0, ResultDesc: "Accepted"})
}

// ListPayments handles transaction listing requests for internal services
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	attempts, err := h.paymentUC.ListPayments(c.Request().Context())
	if err != nil {
		logger.Error("Failed to list payment attempts", logger.ErrorField(err))
		return utils.InternalServerErrorResponse(c, "Failed to list payment attempts")
	}

	return utils.SuccessResponse(c, http.StatusOK, "Payment attempts retrieved", attempts)
}

// GetGatewayConfig exposes the non-sensitive gateway settings so operators can
// verify the deployed environment. Credentials are never included.
func (h *PaymentHandler) GetGatewayConfig(c echo.Context) error {
	cfg := map[string]interface{}{
		"environment":       h.cfg.Mpesa.Environment,
		"short_code":        h.cfg.Mpesa.ShortCode,
		"callback_url":      h.cfg.Mpesa.CallbackURL,
		"business_phone":    h.cfg.Mpesa.BusinessPhone,
		"poll_interval_s":   h.cfg.Polling.IntervalSeconds,
		"poll_max_attempts": h.cfg.Polling.MaxAttempts,
	}

	return utils.SuccessResponse(c, http.StatusOK, "Gateway configuration", cfg)
}
