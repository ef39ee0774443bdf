package payments

import (
	"context"
	"errors"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v81"
	"github.com/vocdoni/saas-billing/db"
	"github.com/vocdoni/saas-billing/stripe"
	"go.vocdoni.io/dvote/log"
)

// Settlement is the outcome of settling a checkout session.
type Settlement struct {
	SessionID string `json:"sessionId"`
	Paid      bool   `json:"paid"`
	// AlreadySettled is set when the session had been settled before, in
	// which case nothing was changed.
	AlreadySettled bool             `json:"alreadySettled"`
	Transaction    *db.Transaction  `json:"transaction,omitempty"`
	Subscription   *db.Subscription `json:"subscription,omitempty"`
	UserCredit     *db.UserCredit   `json:"userCredit,omitempty"`
}

// SettlePayment verifies the checkout session and, if it is paid, grants the
// plan of its transaction to the user. Settling a session more than once is
// safe: the credits are granted a single time and later calls report
// AlreadySettled. A settlement interrupted after the transaction was marked
// SUCCESS is completed by the next call.
func (s *Service) SettlePayment(ctx context.Context, sessionID string) (*Settlement, error) {
	if !s.gateway.Configured() {
		return nil, stripe.ErrNotConfigured
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.gateway.CheckoutSession(ctx, sessionID, true)
	if err != nil {
		log.Errorw(err, "failed to retrieve checkout session "+sessionID)
		return nil, err
	}
	return s.settle(ctx, session)
}

func (s *Service) settle(ctx context.Context, session *stripe.CheckoutSession) (*Settlement, error) {
	settlement := &Settlement{SessionID: session.ID}
	tx, err := s.reconcile(ctx, session)
	switch {
	case errors.Is(err, ErrNoPendingTransaction):
		// the transaction may have been reconciled by a previous call
		tx, err = Retry(ctx, s.config.Retry, func(ctx context.Context) (*db.Transaction, error) {
			return s.store.TransactionByOrder(ctx, session.ID, session.UserID())
		})
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w %s", ErrNoPendingTransaction, session.ID)
		}
		if err != nil {
			return nil, err
		}
		settlement.Transaction = tx
		if tx.Status != db.TransactionSuccess {
			if session.Paid() {
				log.Warnw("paid checkout session with a failed transaction, manual review required",
					"session", session.ID, "user", tx.UserID, "transaction", tx.ID.Hex())
			}
			settlement.AlreadySettled = true
			return settlement, nil
		}
		settlement.Paid = true
		sub, err := Retry(ctx, s.config.Retry, func(ctx context.Context) (*db.Subscription, error) {
			return s.store.SubscriptionByOrder(ctx, session.ID)
		})
		if err == nil {
			settlement.Subscription = sub
			settlement.AlreadySettled = true
			return settlement, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		log.Infow("resuming interrupted settlement", "session", session.ID, "user", tx.UserID)
	case err != nil:
		return nil, err
	default:
		settlement.Transaction = tx
		settlement.Paid = tx.Status == db.TransactionSuccess
		if !settlement.Paid {
			return settlement, nil
		}
	}

	record, err := s.CreateSubscriptionRecord(ctx, tx.UserID, tx.Plan, tx.PaymentID, tx.OrderID, false)
	if errors.Is(err, ErrAlreadySettled) {
		settlement.AlreadySettled = true
		return settlement, nil
	}
	if err != nil {
		return nil, err
	}
	settlement.Subscription = record.Subscription
	settlement.UserCredit = record.UserCredit
	return settlement, nil
}

// HandleWebhookEvent validates a webhook delivery and settles the checkout
// session it refers to. Completed sessions still waiting for an
// asynchronous payment are left PENDING until the gateway reports the
// result. Other events are ignored and return a nil settlement.
func (s *Service) HandleWebhookEvent(ctx context.Context, payload []byte, signatureHeader string) (*Settlement, error) {
	if !s.gateway.Configured() {
		return nil, stripe.ErrNotConfigured
	}
	event, err := s.gateway.ValidateWebhookEvent(payload, signatureHeader)
	if err != nil {
		return nil, err
	}
	switch event.Type {
	case stripeapi.EventTypeCheckoutSessionCompleted,
		stripeapi.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripeapi.EventTypeCheckoutSessionAsyncPaymentFailed:
	default:
		log.Debugf("stripe webhook: received unhandled event type %s (id %s)", event.Type, event.ID)
		return nil, nil
	}
	session, err := stripe.CheckoutSessionFromEvent(event)
	if err != nil {
		return nil, err
	}
	if event.Type == stripeapi.EventTypeCheckoutSessionCompleted && !session.Paid() {
		log.Infow("checkout session completed, waiting for payment", "session", session.ID, "event", event.ID)
		return nil, nil
	}
	log.Infow("stripe webhook: settling checkout session", "session", session.ID, "event", event.ID, "type", event.Type)
	unlock := s.locks.Lock(session.ID)
	defer unlock()
	return s.settle(ctx, session)
}
