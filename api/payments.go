package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/saas-billing/api/apicommon"
	"github.com/vocdoni/saas-billing/errors"
	"go.vocdoni.io/dvote/log"
)

// plansHandler godoc
//
//	@Summary		List plans
//	@Description	Get the purchasable plans ordered by price, with the credits each one grants.
//	@Tags			plans
//	@Produce		json
//	@Success		200	{object}	apicommon.PlansResponse
//	@Router			/plans [get]
func (a *API) plansHandler(w http.ResponseWriter, _ *http.Request) {
	apicommon.HTTPWriteJSON(w, &apicommon.PlansResponse{
		Plans:    a.payments.Plans(),
		Currency: a.payments.Currency(),
	})
}

// createCheckoutHandler godoc
//
//	@Summary		Create a checkout session
//	@Description	Open a hosted checkout session for the plan and record its pending transaction.
//	@Description	The client redirects the user to the returned URL.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		apicommon.CheckoutRequest	true	"Plan to purchase"
//	@Success		200		{object}	apicommon.CheckoutResponse
//	@Failure		400		{object}	errors.Error	"Invalid input data"
//	@Failure		401		{object}	errors.Error	"Unauthorized"
//	@Failure		404		{object}	errors.Error	"Plan not found"
//	@Failure		503		{object}	errors.Error	"Payments not configured"
//	@Router			/payments/checkout [post]
func (a *API) createCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	req := &apicommon.CheckoutRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		errors.ErrMalformedBody.Write(w)
		return
	}
	if req.Plan == "" {
		errors.ErrMalformedBody.Withf("missing plan").Write(w)
		return
	}
	session, err := a.payments.CreateStripeSession(r.Context(), user.ID, req.Plan, user.Email)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.CheckoutResponse{
		SessionID: session.ID,
		URL:       session.URL,
	})
}

// checkoutSessionHandler godoc
//
//	@Summary		Get a checkout session
//	@Description	Get the status of a checkout session of the caller as the payment gateway reports it.
//	@Tags			payments
//	@Produce		json
//	@Security		BearerAuth
//	@Param			sessionID	path		string	true	"Checkout session ID"
//	@Success		200			{object}	apicommon.CheckoutSessionResponse
//	@Failure		401			{object}	errors.Error	"Unauthorized"
//	@Failure		403			{object}	errors.Error	"Session of another user"
//	@Failure		404			{object}	errors.Error	"Session not found"
//	@Router			/payments/checkout/{sessionID} [get]
func (a *API) checkoutSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		errors.ErrMalformedURLParam.Withf("missing session ID").Write(w)
		return
	}
	session, err := a.payments.GetStripeSession(r.Context(), sessionID)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	if session.UserID() != user.ID {
		errors.ErrSessionNotOwned.Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, apicommon.CheckoutSessionResponseFrom(session))
}

// verifyCheckoutHandler godoc
//
//	@Summary		Verify a checkout session
//	@Description	Reconcile the pending transaction of the session with the payment status and, once paid,
//	@Description	grant the credits of the plan. Verifying a settled session again changes nothing.
//	@Tags			payments
//	@Produce		json
//	@Security		BearerAuth
//	@Param			sessionID	path		string	true	"Checkout session ID"
//	@Success		200			{object}	apicommon.VerifyResponse
//	@Failure		401			{object}	errors.Error	"Unauthorized"
//	@Failure		403			{object}	errors.Error	"Session of another user"
//	@Failure		409			{object}	errors.Error	"No pending transaction for the session"
//	@Failure		503			{object}	errors.Error	"Storage or payment gateway unavailable"
//	@Router			/payments/checkout/{sessionID}/verify [post]
func (a *API) verifyCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		errors.ErrMalformedURLParam.Withf("missing session ID").Write(w)
		return
	}
	session, err := a.payments.GetStripeSession(r.Context(), sessionID)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	if session.UserID() != user.ID {
		errors.ErrSessionNotOwned.Write(w)
		return
	}
	settlement, err := a.payments.SettlePayment(r.Context(), sessionID)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	credits, err := a.payments.Credits(r.Context(), user.ID)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	log.Debugw("checkout session verified", "session", sessionID, "user", user.ID,
		"paid", settlement.Paid, "alreadySettled", settlement.AlreadySettled)
	apicommon.HTTPWriteJSON(w, &apicommon.VerifyResponse{
		SessionID:      settlement.SessionID,
		Paid:           settlement.Paid,
		AlreadySettled: settlement.AlreadySettled,
		Credits:        credits,
	})
}
