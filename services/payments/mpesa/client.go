package mpesa

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mealyhq/payments-service/internal/pkg/circuitbreaker"
	httpclient "github.com/mealyhq/payments-service/internal/pkg/http"
	"github.com/mealyhq/payments-service/internal/pkg/logger"
	"github.com/mealyhq/payments-service/internal/pkg/models"
	"github.com/mealyhq/payments-service/internal/pkg/retry"
	"github.com/mealyhq/payments-service/services/payments"
)

const (
	tokenEndpoint    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushEndpoint  = "/mpesa/stkpush/v1/processrequest"
	stkQueryEndpoint = "/mpesa/stkpushquery/v1/query"

	// TransactionType is the only push type the service issues
	TransactionType = "CustomerPayBillOnline"

	// MinAmount and MaxAmount are the gateway's per-transaction limits in
	// major units (KSH)
	MinAmount = 1.0
	MaxAmount = 150000.0

	// timestampLayout is the gateway's YYYYMMDDHHMMSS password timestamp
	timestampLayout = "20060102150405"

	// tokenRefreshMargin refreshes the OAuth token well before its ~1h
	// expiry so a token never goes stale mid-request
	tokenRefreshMargin = 5 * time.Minute
)

// Client talks to the Daraja STK push API. It owns the process-wide OAuth
// token cache; concurrent refreshes collapse to a single in-flight exchange.
type Client struct {
	cfg     models.MpesaConfig
	http    *httpclient.Client
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
	now     func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a new Daraja gateway client
func NewClient(cfg models.MpesaConfig) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout == 0 {
		timeout = httpclient.DefaultTimeout
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = 2
	retryCfg.RetryableFunc = func(err error) bool {
		return errors.Is(err, payments.ErrNetwork)
	}

	// Only transport trouble trips the breaker. Business rejections mean the
	// gateway is up and answering; counting them would block healthy traffic.
	breakerCfg := circuitbreaker.DefaultConfig("mpesa-gateway")
	breakerCfg.IsFailure = func(err error) bool {
		return errors.Is(err, payments.ErrNetwork) || errors.Is(err, payments.ErrGatewayTimeout)
	}

	return &Client{
		cfg:     cfg,
		http:    httpclient.NewClient(cfg.BaseURL, timeout),
		breaker: circuitbreaker.New(breakerCfg),
		retrier: retry.New(retryCfg),
		now:     time.Now,
	}
}

// darajaError is the gateway's HTTP-level error payload
type darajaError struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type stkPushEnvelope struct {
	models.STKPushResponse
	darajaError
}

type stkQueryEnvelope struct {
	models.STKQueryResponse
	darajaError
}

// AccessToken returns a cached bearer token, exchanging client credentials
// when the cache is empty or inside the refresh margin.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(tokenRefreshMargin).Before(c.tokenExpiry) {
		return c.token, nil
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	headers := map[string]string{
		"Authorization": "Basic " + auth,
	}

	var tokenResp models.TokenResponse
	err := c.retrier.Execute(ctx, func(ctx context.Context) error {
		status, err := c.http.Get(ctx, tokenEndpoint, headers, &tokenResp)
		if err != nil {
			return classifyTransportError(err)
		}
		if status != http.StatusOK || tokenResp.AccessToken == "" {
			return fmt.Errorf("%w: token endpoint returned status %d", payments.ErrAuthentication, status)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, payments.ErrGatewayTimeout) || errors.Is(err, payments.ErrNetwork) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", payments.ErrAuthentication, err)
	}

	expiresIn, convErr := strconv.Atoi(tokenResp.ExpiresIn)
	if convErr != nil || expiresIn <= 0 {
		expiresIn = 3599
	}

	c.token = tokenResp.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(expiresIn) * time.Second)

	logger.Debug("Obtained gateway access token",
		logger.String("environment", c.cfg.Environment),
		logger.Duration("lifetime", time.Duration(expiresIn)*time.Second))

	return c.token, nil
}

// GeneratePassword builds the timestamped request signature:
// base64(shortcode + passkey + timestamp)
func (c *Client) GeneratePassword(at time.Time) (password, timestamp string) {
	timestamp = at.Format(timestampLayout)
	password = base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
	return password, timestamp
}

// AmountToMinorUnits validates the KSH amount and converts it to integer
// cents. Amounts outside the gateway limits or with sub-cent precision are
// rejected here, before any network call; silent truncation would change the
// amount charged.
func AmountToMinorUnits(amount float64) (int64, error) {
	if amount < MinAmount || amount > MaxAmount {
		return 0, payments.ErrInvalidAmount
	}

	cents := amount * 100
	rounded := math.Round(cents)
	if math.Abs(cents-rounded) > 1e-6 {
		return 0, payments.ErrInvalidAmount
	}

	return int64(rounded), nil
}

// InitiateSTKPush sends the payment prompt to the customer's handset
func (c *Client) InitiateSTKPush(ctx context.Context, phoneNumber string, amount float64, accountReference, description string) (*models.STKPushResponse, error) {
	minorUnits, err := AmountToMinorUnits(amount)
	if err != nil {
		return nil, err
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	password, timestamp := c.GeneratePassword(c.now())

	reqBody := models.STKPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   TransactionType,
		Amount:            minorUnits,
		PartyA:            phoneNumber,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phoneNumber,
		CallBackURL:       c.callbackURL(),
		AccountReference:  accountReference,
		TransactionDesc:   description,
	}

	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}

	var envelope stkPushEnvelope
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		status, err := c.http.PostJSON(ctx, stkPushEndpoint, reqBody, headers, &envelope)
		if err != nil {
			return classifyTransportError(err)
		}
		if envelope.ErrorCode != "" {
			return &payments.GatewayError{Code: envelope.ErrorCode, Description: envelope.ErrorMessage}
		}
		if status != http.StatusOK {
			return fmt.Errorf("%w: push endpoint returned status %d", payments.ErrNetwork, status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if envelope.ResponseCode != "0" {
		return nil, &payments.GatewayError{
			Code:        envelope.ResponseCode,
			Description: envelope.ResponseDescription,
		}
	}

	logger.Info("STK push accepted by gateway",
		logger.String("checkout_request_id", envelope.CheckoutRequestID),
		logger.String("merchant_request_id", envelope.MerchantRequestID),
		logger.String("account_reference", accountReference))

	return &envelope.STKPushResponse, nil
}

// QuerySTKStatus fetches the raw status of a previous push. Interpretation
// of the result belongs to the reconciler, not the transport.
func (c *Client) QuerySTKStatus(ctx context.Context, checkoutRequestID string) (*models.STKQueryResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	password, timestamp := c.GeneratePassword(c.now())

	reqBody := models.STKQueryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}

	var envelope stkQueryEnvelope
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		status, err := c.http.PostJSON(ctx, stkQueryEndpoint, reqBody, headers, &envelope)
		if err != nil {
			return classifyTransportError(err)
		}
		if envelope.ErrorCode != "" {
			return &payments.GatewayError{Code: envelope.ErrorCode, Description: envelope.ErrorMessage}
		}
		if status != http.StatusOK {
			return fmt.Errorf("%w: query endpoint returned status %d", payments.ErrNetwork, status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &envelope.STKQueryResponse, nil
}

// callbackURL appends the shared secret the webhook guard expects
func (c *Client) callbackURL() string {
	if c.cfg.CallbackSecret == "" {
		return c.cfg.CallbackURL
	}
	return c.cfg.CallbackURL + "?key=" + c.cfg.CallbackSecret
}

// classifyTransportError maps transport failures onto the error taxonomy:
// deadline overruns become ErrGatewayTimeout, everything else ErrNetwork.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", payments.ErrGatewayTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", payments.ErrGatewayTimeout, err)
	}

	return fmt.Errorf("%w: %v", payments.ErrNetwork, err)
}
