package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealyhq/payments-service/internal/pkg/circuitbreaker"
	"github.com/mealyhq/payments-service/internal/pkg/models"
	"github.com/mealyhq/payments-service/services/payments"
)

func testConfig(baseURL string) models.MpesaConfig {
	return models.MpesaConfig{
		Environment:    "sandbox",
		BaseURL:        baseURL,
		ShortCode:      "174379",
		ConsumerKey:    "test-consumer-key",
		ConsumerSecret: "test-consumer-secret",
		Passkey:        "test-passkey",
		CallbackURL:    "https://payments.mealy.internal/payments/mpesa/callback",
		CallbackSecret: "webhook-secret",
		RequestTimeout: 5,
	}
}

func tokenHandler(calls *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		json.NewEncoder(w).Encode(models.TokenResponse{
			AccessToken: "test-token",
			ExpiresIn:   "3599",
		})
	}
}

func TestAmountToMinorUnits(t *testing.T) {
	testCases := []struct {
		name      string
		amount    float64
		expected  int64
		expectErr bool
	}{
		{name: "minimum amount", amount: 1, expected: 100},
		{name: "maximum amount", amount: 150000, expected: 15000000},
		{name: "two decimal places", amount: 99.99, expected: 9999},
		{name: "whole shillings", amount: 250, expected: 25000},
		{name: "below minimum", amount: 0.5, expectErr: true},
		{name: "zero", amount: 0, expectErr: true},
		{name: "negative", amount: -10, expectErr: true},
		{name: "above maximum", amount: 150000.01, expectErr: true},
		{name: "sub-cent precision", amount: 100.005, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AmountToMinorUnits(tc.amount)
			if tc.expectErr {
				assert.ErrorIs(t, err, payments.ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestGeneratePassword(t *testing.T) {
	client := NewClient(testConfig("http://unused"))

	at := time.Date(2025, 3, 15, 14, 30, 45, 0, time.UTC)
	password, timestamp := client.GeneratePassword(at)

	assert.Equal(t, "20250315143045", timestamp)

	expected := base64.StdEncoding.EncodeToString([]byte("174379" + "test-passkey" + "20250315143045"))
	assert.Equal(t, expected, password)
}

func TestAccessTokenCaching(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(&tokenCalls))

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	token, err := client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-token", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))

	// Second call within the token lifetime hits the cache
	token, err = client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-token", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))

	// Inside the refresh margin the token is exchanged again
	now = now.Add(3595 * time.Second)
	_, err = client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenCalls))
}

func TestAccessTokenAuthenticationFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	_, err := client.AccessToken(context.Background())
	assert.ErrorIs(t, err, payments.ErrAuthentication)
}

func TestInitiateSTKPushSuccess(t *testing.T) {
	var tokenCalls int32
	var pushReq models.STKPushRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(&tokenCalls))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&pushReq))

		json.NewEncoder(w).Encode(models.STKPushResponse{
			MerchantRequestID:   "29115-34620561-1",
			CheckoutRequestID:   "ws_CO_191220191020363925",
			ResponseCode:        "0",
			ResponseDescription: "Success. Request accepted for processing",
			CustomerMessage:     "Success. Request accepted for processing",
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	resp, err := client.InitiateSTKPush(context.Background(), "254712345678", 150.50, "MEALY_ORDER_42", "Food order")
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_191220191020363925", resp.CheckoutRequestID)
	assert.Equal(t, "29115-34620561-1", resp.MerchantRequestID)

	assert.Equal(t, "174379", pushReq.BusinessShortCode)
	assert.Equal(t, TransactionType, pushReq.TransactionType)
	assert.Equal(t, int64(15050), pushReq.Amount)
	assert.Equal(t, "254712345678", pushReq.PartyA)
	assert.Equal(t, "254712345678", pushReq.PhoneNumber)
	assert.Equal(t, "MEALY_ORDER_42", pushReq.AccountReference)
	assert.Equal(t, "https://payments.mealy.internal/payments/mpesa/callback?key=webhook-secret", pushReq.CallBackURL)
}

func TestInitiateSTKPushInvalidAmountSkipsNetwork(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	_, err := client.InitiateSTKPush(context.Background(), "254712345678", 150000.01, "REF", "desc")
	assert.ErrorIs(t, err, payments.ErrInvalidAmount)
	assert.Equal(t, int32(0), atomic.LoadInt32(&requests))
}

func TestInitiateSTKPushGatewayRejection(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(&tokenCalls))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"requestId":    "12345-67890-1",
			"errorCode":    "400.002.02",
			"errorMessage": "Bad Request - Invalid PhoneNumber",
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	_, err := client.InitiateSTKPush(context.Background(), "254712345678", 100, "REF", "desc")
	require.Error(t, err)

	ge, ok := payments.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, "400.002.02", ge.Code)
	assert.Equal(t, "Bad Request - Invalid PhoneNumber", ge.Description)
}

func TestQuerySTKStatusPassesRawResult(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(&tokenCalls))
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		var req models.STKQueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ws_CO_test", req.CheckoutRequestID)

		json.NewEncoder(w).Encode(models.STKQueryResponse{
			ResponseCode:      "0",
			CheckoutRequestID: "ws_CO_test",
			ResultCode:        "1032",
			ResultDesc:        "Request cancelled by user",
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	resp, err := client.QuerySTKStatus(context.Background(), "ws_CO_test")
	require.NoError(t, err)
	assert.Equal(t, "1032", resp.ResultCode)
	assert.Equal(t, "Request cancelled by user", resp.ResultDesc)
}

func TestGatewayRejectionsDoNotTripBreaker(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(&tokenCalls))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"errorCode":    "400.002.02",
			"errorMessage": "Bad Request - Invalid Amount",
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	// Far more rejections than the failure threshold; the gateway is healthy,
	// so every call must still reach it instead of failing fast.
	for i := 0; i < 10; i++ {
		_, err := client.InitiateSTKPush(context.Background(), "254712345678", 100, "REF", "desc")
		_, ok := payments.AsGatewayError(err)
		require.True(t, ok, "call %d should surface the gateway rejection", i)
	}

	assert.Equal(t, circuitbreaker.StateClosed, client.breaker.State())
}

func TestClassifyTransportError(t *testing.T) {
	assert.ErrorIs(t, classifyTransportError(errors.New("connection refused")), payments.ErrNetwork)
}

func TestCallbackURLWithoutSecret(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.CallbackSecret = ""
	client := NewClient(cfg)

	assert.Equal(t, cfg.CallbackURL, client.callbackURL())
}
