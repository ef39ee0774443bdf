package api

import (
	stderrors "errors"
	"net/http"

	stripeapi "github.com/stripe/stripe-go/v81"
	"github.com/vocdoni/saas-billing/db"
	"github.com/vocdoni/saas-billing/errors"
	"github.com/vocdoni/saas-billing/payments"
	"github.com/vocdoni/saas-billing/stripe"
)

// apiError translates an error returned by the payments service into the
// API error written to the client.
func apiError(err error) errors.Error {
	var apiErr errors.Error
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	var stripeAPIErr *stripeapi.Error
	switch {
	case stderrors.Is(err, stripe.ErrNotConfigured):
		return errors.ErrPaymentsNotConfigured
	case stderrors.Is(err, payments.ErrUnknownPlan):
		return errors.ErrPlanNotFound.WithErr(err)
	case stderrors.Is(err, payments.ErrNoPendingTransaction):
		return errors.ErrNoPendingTransaction
	case stderrors.Is(err, payments.ErrInvalidSession):
		return errors.ErrInvalidCheckoutData.WithErr(err)
	case stderrors.Is(err, payments.ErrInvalidRequest), stderrors.Is(err, db.ErrInvalidData):
		return errors.ErrInvalidData.WithErr(err)
	case stderrors.Is(err, stripe.ErrWebhookValidation), stderrors.Is(err, stripe.ErrInvalidEvent):
		return errors.ErrInvalidWebhook.WithErr(err)
	case stderrors.Is(err, db.ErrUnavailable):
		return errors.ErrStorageUnavailable.WithErr(err)
	case stderrors.Is(err, db.ErrAlreadyExists):
		return errors.ErrDuplicateConflict.WithErr(err)
	case stripe.IsRetryableError(err):
		return errors.ErrStripeUnavailable.WithErr(err)
	case stderrors.As(err, &stripeAPIErr) && stripeAPIErr.HTTPStatusCode == http.StatusNotFound:
		return errors.ErrCheckoutSessionNotFound
	case stderrors.Is(err, stripe.ErrAPICallFailed):
		return errors.ErrStripeError.WithErr(err)
	default:
		return errors.ErrGenericInternalServerError.WithErr(err)
	}
}
