package stripe

import (
	"errors"
	"fmt"
	"net/http"

	stripeapi "github.com/stripe/stripe-go/v81"
)

// StripeError represents a Stripe-specific error
type StripeError struct {
	Code    string
	Message string
	Err     error
}

func (e *StripeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stripe error [%s]: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("stripe error [%s]: %s", e.Code, e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.Err
}

// Is matches any StripeError with the same code, so errors built with
// NewStripeError satisfy errors.Is against the sentinels below.
func (e *StripeError) Is(target error) bool {
	t, ok := target.(*StripeError)
	return ok && t.Code == e.Code
}

// Common Stripe errors
var (
	ErrNotConfigured        = &StripeError{Code: "not_configured", Message: "stripe is not configured"}
	ErrInvalidConfiguration = &StripeError{Code: "invalid_configuration", Message: "invalid stripe configuration"}
	ErrInvalidEvent         = &StripeError{Code: "invalid_event", Message: "invalid webhook event"}
	ErrAPICallFailed        = &StripeError{Code: "api_call_failed", Message: "stripe API call failed"}
	ErrWebhookValidation    = &StripeError{Code: "webhook_validation", Message: "webhook signature validation failed"}
)

// NewStripeError creates a new StripeError with the given code, message, and underlying error
func NewStripeError(code, message string, err error) *StripeError {
	return &StripeError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsRetryableError determines if a failed API call may succeed if repeated:
// rate limiting, Stripe server errors and requests that never got an answer.
func IsRetryableError(err error) bool {
	if !errors.Is(err, ErrAPICallFailed) {
		return false
	}
	var apiErr *stripeapi.Error
	if !errors.As(err, &apiErr) {
		// no response from Stripe at all
		return true
	}
	return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
		apiErr.HTTPStatusCode >= http.StatusInternalServerError
}
