package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/vocdoni/saas-billing/db"
	"github.com/vocdoni/saas-billing/stripe"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.vocdoni.io/dvote/log"
)

// CreateTransactionRecord inserts a transaction. It does not check for an
// existing transaction of the order, the store rejects a second PENDING one
// for the same user and order. The ID is fixed before the first attempt, so
// an insert applied by an attempt that reported a transient failure is
// recognised by the retry and returned.
func (s *Service) CreateTransactionRecord(ctx context.Context, userID string, amount int64, currency,
	paymentID, orderID, plan string, status db.TransactionStatus,
) (*db.Transaction, error) {
	if status == "" {
		status = db.TransactionPending
	}
	tx := &db.Transaction{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		PaymentID: paymentID,
		OrderID:   orderID,
		Plan:      plan,
		Status:    status,
	}
	uncertain := false
	err := retryErr(ctx, s.config.Retry, func(ctx context.Context) error {
		err := s.store.CreateTransaction(ctx, tx)
		if uncertain && errors.Is(err, db.ErrAlreadyExists) {
			stored, lookupErr := s.store.Transaction(ctx, tx.ID)
			switch {
			case lookupErr == nil:
				log.Infow("transaction inserted by a previous attempt", "order", orderID, "transaction", tx.ID.Hex())
				*tx = *stored
				return nil
			case !errors.Is(lookupErr, db.ErrNotFound):
				return lookupErr
			}
		}
		if err != nil && s.config.Retry.Transient(err) {
			uncertain = true
		}
		return err
	})
	if err != nil {
		log.Errorw(err, fmt.Sprintf("failed to create transaction record for order %s", orderID))
		return nil, err
	}
	return tx, nil
}

// VerifyStripePayment reconciles the PENDING transaction of the session with
// the payment status reported by the gateway: SUCCESS if paid, FAILED
// otherwise. It returns whether the session is paid. It never grants
// credits, see SettlePayment.
func (s *Service) VerifyStripePayment(ctx context.Context, sessionID string) (bool, error) {
	if !s.gateway.Configured() {
		return false, stripe.ErrNotConfigured
	}
	session, err := s.gateway.CheckoutSession(ctx, sessionID, true)
	if err != nil {
		log.Errorw(err, "failed to retrieve checkout session "+sessionID)
		return false, err
	}
	if _, err := s.reconcile(ctx, session); err != nil {
		return false, err
	}
	return session.Paid(), nil
}

// reconcile moves the PENDING transaction of the session to its final
// status. The payment ID becomes the payment intent ID when the session has
// one. ErrNoPendingTransaction is returned if there is no PENDING
// transaction for the session and its user, including when a concurrent
// call settled it first.
func (s *Service) reconcile(ctx context.Context, session *stripe.CheckoutSession) (*db.Transaction, error) {
	userID := session.UserID()
	if userID == "" {
		return nil, fmt.Errorf("%w: session %s has no user", ErrInvalidSession, session.ID)
	}
	pending, err := Retry(ctx, s.config.Retry, func(ctx context.Context) (*db.Transaction, error) {
		return s.store.PendingTransaction(ctx, session.ID, userID)
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w %s", ErrNoPendingTransaction, session.ID)
		}
		log.Errorw(err, "failed to find pending transaction for session "+session.ID)
		return nil, err
	}
	status := db.TransactionFailed
	if session.Paid() {
		status = db.TransactionSuccess
	}
	settled, err := Retry(ctx, s.config.Retry, func(ctx context.Context) (*db.Transaction, error) {
		return s.store.SettleTransaction(ctx, pending.ID, status, session.PaymentIntentID)
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w %s", ErrNoPendingTransaction, session.ID)
		}
		log.Errorw(err, "failed to update transaction for session "+session.ID)
		return nil, err
	}
	log.Infow("transaction reconciled", "session", session.ID, "user", userID,
		"status", settled.Status, "paymentId", settled.PaymentID)
	return settled, nil
}
