package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the canonical state of a payment attempt
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusTimeout   PaymentStatus = "timeout"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// IsTerminal reports whether no further transition is permitted
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusCancelled, PaymentStatusTimeout, PaymentStatusFailed:
		return true
	}
	return false
}

// Gateway result codes. The query response carries them as strings, the
// callback as numbers; both are normalized to these string forms.
const (
	ResultCodeSuccess           = "0"
	ResultCodeInsufficientFunds = "1"
	ResultCodeCancelledByUser   = "1032"
	ResultCodeGatewayTimeout    = "1037"
	ResultCodeWrongPIN          = "2001"
)

// PaymentAttempt is the ledger record for one STK push, keyed by the
// gateway-issued checkout request ID. Append-only: rows are never deleted
// and a terminal status is never overwritten.
type PaymentAttempt struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	CheckoutRequestID string        `json:"checkout_request_id" db:"checkout_request_id"`
	MerchantRequestID string        `json:"merchant_request_id" db:"merchant_request_id"`
	CustomerID        string        `json:"customer_id" db:"customer_id"`
	OrderReference    string        `json:"order_reference" db:"order_reference"`
	PhoneNumber       string        `json:"phone_number" db:"phone_number"`
	Amount            float64       `json:"amount" db:"amount"`
	Status            PaymentStatus `json:"status" db:"status"`
	ResultCode        string        `json:"result_code,omitempty" db:"result_code"`
	ResultDescription string        `json:"result_description,omitempty" db:"result_description"`
	ReceiptNumber     string        `json:"receipt_number,omitempty" db:"receipt_number"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt       *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	TimeoutAt         *time.Time    `json:"timeout_at,omitempty" db:"timeout_at"`
	FailedAt          *time.Time    `json:"failed_at,omitempty" db:"failed_at"`
}

// InitiatePaymentRequest is the inbound request to start an STK push
type InitiatePaymentRequest struct {
	CustomerID     string  `json:"customer_id"`
	OrderReference string  `json:"order_reference"`
	PhoneNumber    string  `json:"phone_number"`
	Amount         float64 `json:"amount"`
	Description    string  `json:"description,omitempty"`
}

// InitiatePaymentResponse is returned to the caller after a successful push
type InitiatePaymentResponse struct {
	CheckoutRequestID string `json:"checkout_request_id"`
	MerchantRequestID string `json:"merchant_request_id"`
	CustomerMessage   string `json:"customer_message"`
}

// STKPushRequest is the Daraja process-request payload
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse is the synchronous Daraja response to a push request
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKQueryRequest is the Daraja status-query payload
type STKQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// STKQueryResponse is the raw Daraja status-query response. ResultCode is
// empty while the customer has not yet acted on the prompt.
type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// TokenResponse is the Daraja OAuth response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// CallbackEnvelope is the asynchronous confirmation pushed by the gateway
type CallbackEnvelope struct {
	Body struct {
		STKCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback is the inner callback payload. ResultCode is a pointer so a
// payload that omits it is distinguishable from an explicit 0 (success); an
// absent code must reject the callback, not complete the payment.
type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        *int              `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata is the name/value item list attached to successful callbacks
type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem is one metadata entry; Value may be a string or a number
type CallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

// CallbackAck is the fixed acknowledgement envelope the gateway expects.
// It is always sent with HTTP 200; ResultCode 1 signals a malformed payload.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// ReconciliationSource identifies which channel produced a reconciliation input
type ReconciliationSource string

const (
	SourcePoll     ReconciliationSource = "poll"
	SourceCallback ReconciliationSource = "callback"
)

// ReconciliationEvent is the normalized input to the status reconciler,
// produced from either a poll response or a callback payload.
type ReconciliationEvent struct {
	Source            ReconciliationSource
	CheckoutRequestID string
	ResultCode        string // empty while the gateway still reports pending
	ResultDesc        string
	ReceiptNumber     string
	Amount            float64
	PhoneNumber       string
	TransactionDate   string
}

// PaymentOutcomeEvent is published on NATS when an attempt reaches a
// terminal status.
type PaymentOutcomeEvent struct {
	AttemptID         uuid.UUID     `json:"attempt_id"`
	CheckoutRequestID string        `json:"checkout_request_id"`
	OrderReference    string        `json:"order_reference"`
	CustomerID        string        `json:"customer_id"`
	Status            PaymentStatus `json:"status"`
	Amount            float64       `json:"amount"`
	ReceiptNumber     string        `json:"receipt_number,omitempty"`
	ResultCode        string        `json:"result_code"`
	ResultDescription string        `json:"result_description"`
	OccurredAt        time.Time     `json:"occurred_at"`
}
