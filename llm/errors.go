package llm

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoAPIKey is returned when the gateway has no credentials configured.
var ErrNoAPIKey = errors.New("llm: no API key configured")

// GatewayError is a transport or non-2xx failure from the gateway.
// StatusCode is 0 when no HTTP response was received.
type GatewayError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// RateLimited reports whether the gateway throttled the call.
func (e *GatewayError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// PaymentRequired reports whether the gateway account is out of credits.
func (e *GatewayError) PaymentRequired() bool {
	return e.StatusCode == http.StatusPaymentRequired
}

// ParseError is returned when a response does not hold the expected JSON.
// Raw keeps the model's text for the audit trail.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("llm: unparseable response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// StatusCode extracts the gateway HTTP status from err, or 0.
func StatusCode(err error) int {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.StatusCode
	}
	return 0
}

func wrapGatewayError(op string, err error) error {
	if err == nil {
		return nil
	}
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return &GatewayError{Op: op, StatusCode: status, Err: err}
}
