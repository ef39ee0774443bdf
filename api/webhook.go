package api

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/vocdoni/saas-billing/api/apicommon"
	"github.com/vocdoni/saas-billing/errors"
	"github.com/vocdoni/saas-billing/payments"
	"github.com/vocdoni/saas-billing/stripe"
	"go.vocdoni.io/dvote/log"
)

// webhookHandler godoc
//
//	@Summary		Handle Stripe webhook events
//	@Description	Settle the checkout sessions reported by the payment gateway. Deliveries that cannot
//	@Description	succeed on a retry are acknowledged, transient failures answer 5xx so they are redelivered.
//	@Tags			payments
//	@Accept			json
//	@Param			body	body		string	true	"Stripe webhook payload"
//	@Success		200		{string}	string	"OK"
//	@Failure		400		{object}	errors.Error	"Invalid payload or signature"
//	@Failure		500		{object}	errors.Error	"Event could not be processed"
//	@Failure		503		{object}	errors.Error	"Payments not configured"
//	@Router			/payments/webhook [post]
func (a *API) webhookHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, apicommon.MaxWebhookBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		errors.ErrInvalidWebhook.Withf("cannot read body: %v", err).Write(w)
		return
	}
	signatureHeader := r.Header.Get("Stripe-Signature")
	if signatureHeader == "" {
		errors.ErrInvalidWebhook.With("missing Stripe-Signature header").Write(w)
		return
	}

	settlement, err := a.payments.HandleWebhookEvent(r.Context(), payload, signatureHeader)
	if err != nil {
		writeWebhookError(w, err)
		return
	}
	if settlement != nil {
		log.Infow("stripe webhook: checkout session settled", "session", settlement.SessionID,
			"paid", settlement.Paid, "alreadySettled", settlement.AlreadySettled)
	}
	apicommon.HTTPWriteOK(w)
}

// writeWebhookError answers a failed delivery. Stripe redelivers events
// answered with anything but a 2xx, so failures no redelivery could fix are
// acknowledged.
func writeWebhookError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, stripe.ErrWebhookValidation), stderrors.Is(err, stripe.ErrInvalidEvent):
		errors.ErrInvalidWebhook.WithErr(err).Write(w)
	case stderrors.Is(err, stripe.ErrNotConfigured):
		errors.ErrPaymentsNotConfigured.Write(w)
	case stderrors.Is(err, payments.ErrNoPendingTransaction),
		stderrors.Is(err, payments.ErrInvalidSession),
		stderrors.Is(err, payments.ErrUnknownPlan):
		log.Warnw("stripe webhook: event acknowledged without changes", "error", err)
		apicommon.HTTPWriteOK(w)
	default:
		errors.ErrStripeWebhookError.WithErr(err).Write(w)
	}
}
