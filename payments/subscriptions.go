package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/vocdoni/saas-billing/db"
	"go.vocdoni.io/dvote/log"
)

// SubscriptionRecord is the result of granting a plan: the subscription of
// the order and the resulting balance of the user.
type SubscriptionRecord struct {
	Subscription *db.Subscription `json:"subscription"`
	UserCredit   *db.UserCredit   `json:"userCredit"`
}

// CreateSubscriptionRecord creates the subscription of the order and adds
// the credits of the plan to the user in one store transaction: both are
// applied or none is. An order holds a single subscription, a second grant
// for the same order fails with ErrAlreadySettled and changes nothing.
func (s *Service) CreateSubscriptionRecord(ctx context.Context, userID, planID, paymentID, orderID string,
	isAnnual bool,
) (*SubscriptionRecord, error) {
	plan, err := s.config.Plans.Plan(planID)
	if err != nil {
		return nil, err
	}
	if userID == "" || orderID == "" {
		return nil, fmt.Errorf("%w: missing user or order", ErrInvalidRequest)
	}
	log.Debugw("creating subscription record", "user", userID, "plan", plan.ID, "order", orderID, "annual", isAnnual)
	record, err := Retry(ctx, s.config.Retry, func(ctx context.Context) (*SubscriptionRecord, error) {
		record := &SubscriptionRecord{}
		err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
			sub := &db.Subscription{
				UserID:    userID,
				Plan:      plan.ID,
				PaymentID: paymentID,
				OrderID:   orderID,
				Annual:    isAnnual,
			}
			if err := s.store.CreateSubscription(txCtx, sub); err != nil {
				return err
			}
			credit, err := s.store.IncrementUserCredits(txCtx, userID, plan.Credits)
			if err != nil {
				return err
			}
			record.Subscription = sub
			record.UserCredit = credit
			return nil
		})
		return record, err
	})
	if err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: order %s", ErrAlreadySettled, orderID)
		}
		log.Errorw(err, "failed to create subscription record for order "+orderID)
		return nil, err
	}
	log.Infow("subscription created", "user", userID, "plan", plan.ID, "order", orderID,
		"credits", plan.Credits, "balance", record.UserCredit.Amount)
	return record, nil
}
