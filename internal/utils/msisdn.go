package utils

import (
	"errors"
	"regexp"
	"strings"
)

// CountryCode is the Kenyan calling code used on the carrier network
const CountryCode = "254"

// ErrInvalidMSISDN is returned when a number cannot be canonicalized into a
// Kenyan mobile number
var ErrInvalidMSISDN = errors.New("invalid MSISDN: not a Kenyan mobile number")

// kenyanMobilePattern matches canonical Safaricom-reachable numbers:
// 254 followed by a 7xx or 1xx mobile prefix and eight digits.
var kenyanMobilePattern = regexp.MustCompile(`^254[71]\d{8}$`)

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeMSISDN validates a phone number and canonicalizes it into the
// international carrier format (e.g. 0712345678 -> 254712345678). It is a
// pure function; rejection happens before any network call is made.
func NormalizeMSISDN(msisdn string) (string, error) {
	// Clean the input by removing any non-digit characters
	stripped := nonDigits.ReplaceAllString(msisdn, "")
	if stripped == "" {
		return "", ErrInvalidMSISDN
	}

	// Rewrite to international form
	switch {
	case strings.HasPrefix(stripped, "0"):
		// 0712345678 -> 254712345678
		stripped = CountryCode + stripped[1:]
	case strings.HasPrefix(stripped, "7"), strings.HasPrefix(stripped, "1"):
		// Bare subscriber number, country code missing
		stripped = CountryCode + stripped
	}

	if !kenyanMobilePattern.MatchString(stripped) {
		return "", ErrInvalidMSISDN
	}

	return stripped, nil
}
