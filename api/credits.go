package api

import (
	"net/http"

	"github.com/vocdoni/saas-billing/api/apicommon"
	"github.com/vocdoni/saas-billing/errors"
)

// creditsHandler godoc
//
//	@Summary		Get the credit balance
//	@Description	Get the credit balance of the caller, zero if no plan was ever purchased.
//	@Tags			credits
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	apicommon.CreditsResponse
//	@Failure		401	{object}	errors.Error	"Unauthorized"
//	@Router			/credits [get]
func (a *API) creditsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	credits, err := a.payments.Credits(r.Context(), user.ID)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.CreditsResponse{Credits: credits})
}

// historyHandler godoc
//
//	@Summary		Get the billing history
//	@Description	List the transactions and the granted plans of the caller, newest first.
//	@Tags			credits
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	apicommon.HistoryResponse
//	@Failure		401	{object}	errors.Error	"Unauthorized"
//	@Router			/credits/history [get]
func (a *API) historyHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	txs, subs, err := a.payments.History(r.Context(), user.ID)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	res := &apicommon.HistoryResponse{
		Transactions:  make([]*apicommon.Transaction, 0, len(txs)),
		Subscriptions: make([]*apicommon.Subscription, 0, len(subs)),
	}
	for _, tx := range txs {
		res.Transactions = append(res.Transactions, apicommon.TransactionFrom(tx))
	}
	for _, sub := range subs {
		res.Subscriptions = append(res.Subscriptions, apicommon.SubscriptionFrom(sub))
	}
	apicommon.HTTPWriteJSON(w, res)
}
