package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mealyhq/payments-service/internal/pkg/models"
	"github.com/mealyhq/payments-service/internal/utils"
)

const (
	// APIKeyHeader is the header carrying the internal service API key
	APIKeyHeader = "X-API-Key"
	// CallbackSecretParam is the query parameter carrying the callback shared secret
	CallbackSecretParam = "key"
)

// ValidateAPIKey validates the API key for service-to-service communication.
// The caller must present a key matching one of the allowed services.
func ValidateAPIKey(cfg *models.APIKeyConfig, allowedKeys ...string) echo.MiddlewareFunc {
	keys := map[string]string{
		"order-service": cfg.OrderService,
		"admin-portal":  cfg.AdminPortal,
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			apiKey := c.Request().Header.Get(APIKeyHeader)
			if apiKey == "" {
				return utils.ErrorResponseHandler(c, http.StatusUnauthorized, "API key is required")
			}

			validKey := false
			for _, service := range allowedKeys {
				expected := keys[service]
				if expected != "" && subtle.ConstantTimeCompare([]byte(apiKey), []byte(expected)) == 1 {
					validKey = true
					break
				}
			}

			if !validKey {
				return utils.ErrorResponseHandler(c, http.StatusUnauthorized, "Invalid API key")
			}

			return next(c)
		}
	}
}

// ValidateCallbackSecret guards the gateway webhook endpoint. The callback URL
// registered with the gateway embeds a shared secret as a query parameter; the
// gateway does not sign callbacks cryptographically, so this is the origin
// check. Requests missing the secret are rejected before any parsing.
func ValidateCallbackSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				// No secret configured (sandbox); allow through.
				return next(c)
			}

			provided := c.QueryParam(CallbackSecretParam)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				return utils.ErrorResponseHandler(c, http.StatusUnauthorized, "Invalid callback credentials")
			}

			return next(c)
		}
	}
}
