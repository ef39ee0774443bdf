// Package errors defines the errors returned by the HTTP API.
//
//nolint:lll
package errors

import (
	"fmt"
	"net/http"
)

// Error codes in the 40001-49999 range are the client's fault and return a
// 4xx HTTP status. Error codes in the 50001-59999 range are the server's
// fault and return a 5xx HTTP status. There is no correlation between Code
// and HTTP status.
//
// NEVER change an existing code, only append new errors. Gaps in the
// numbering belong to retired errors and must not be reused.
var (
	// Authentication errors (401)
	ErrUnauthorized = Error{Code: 40001, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("authentication required"), LogLevel: "info"}

	// Validation errors (400)
	ErrMalformedBody       = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid JSON request body")}
	ErrMalformedURLParam   = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid URL parameter")}
	ErrInvalidData         = Error{Code: 40037, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid data provided")}
	ErrInvalidWebhook      = Error{Code: 40040, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid webhook payload or signature"), LogLevel: "warn"}
	ErrInvalidCheckoutData = Error{Code: 40041, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("checkout session is missing billing information"), LogLevel: "warn"}

	// Forbidden errors (403)
	ErrSessionNotOwned = Error{Code: 40301, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("checkout session belongs to another user"), LogLevel: "warn"}

	// Not found errors (404)
	ErrPlanNotFound            = Error{Code: 40023, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("plan not found")}
	ErrCheckoutSessionNotFound = Error{Code: 40039, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("checkout session not found")}

	// Conflict errors (409)
	ErrDuplicateConflict    = Error{Code: 40901, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("resource already exists")}
	ErrNoPendingTransaction = Error{Code: 40902, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("no pending transaction found for session"), LogLevel: "info"}

	// Server errors (500)
	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: failed to process response"), LogLevel: "error"}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: operation failed"), LogLevel: "error"}
	ErrStripeError                = Error{Code: 50005, HTTPstatus: http.StatusBadGateway, Err: fmt.Errorf("server error: payment processing failed"), LogLevel: "error"}
	ErrStripeWebhookError         = Error{Code: 50008, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: stripe webhook failed"), LogLevel: "error"}

	// Unavailable errors (503)
	ErrPaymentsNotConfigured = Error{Code: 50009, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("server error: payments are not configured"), LogLevel: "warn"}
	ErrStorageUnavailable    = Error{Code: 50010, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("server error: storage unavailable, try again later"), LogLevel: "error"}
	ErrStripeUnavailable     = Error{Code: 50011, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("server error: payment processor unavailable, try again later"), LogLevel: "error"}
)
