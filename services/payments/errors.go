package payments

import (
	"errors"
	"fmt"
)

// Validation failures, returned before any network call
var (
	// ErrInvalidPhone means the payer number could not be canonicalized
	ErrInvalidPhone = errors.New("invalid phone number: use Kenyan format (e.g. 0712345678)")
	// ErrInvalidAmount means the amount is outside gateway limits or not
	// representable in whole cents
	ErrInvalidAmount = errors.New("invalid amount: must be between KSH 1 and KSH 150000 with at most two decimal places")
)

// Gateway and transport failures
var (
	// ErrAuthentication means the OAuth token exchange failed
	ErrAuthentication = errors.New("gateway authentication failed")
	// ErrGatewayTimeout means an external call exceeded its deadline. Distinct
	// from the business status "timeout" (customer never entered a PIN).
	ErrGatewayTimeout = errors.New("gateway request timed out")
	// ErrNetwork means a transport-level failure other than a timeout
	ErrNetwork = errors.New("gateway network error")
)

// Domain errors
var (
	// ErrAttemptNotFound means no ledger record exists for the correlation id
	ErrAttemptNotFound = errors.New("payment attempt not found")
	// ErrCallbackMalformed means the webhook body is missing required fields
	ErrCallbackMalformed = errors.New("callback payload malformed")
	// ErrPollExhausted means polling ran out of attempts while the attempt was
	// still pending. The caller should advise manual verification: the push may
	// still complete and the callback will record it.
	ErrPollExhausted = errors.New("status polling exhausted without a terminal state")
)

// GatewayError is a business rejection from the gateway at initiation time,
// carrying the gateway's own code and description verbatim.
type GatewayError struct {
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway rejected request (code %s): %s", e.Code, e.Description)
}

// AsGatewayError unwraps err into a *GatewayError if possible
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
