package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/vocdoni/saas-billing/db"
	"go.vocdoni.io/dvote/log"
)

// AddCreditsForPlan adds the credits of the plan to the balance of the user,
// creating the balance on the first grant. Every call adds the credits
// again, callers grant each payment once.
func (s *Service) AddCreditsForPlan(ctx context.Context, userID, planID string) (*db.UserCredit, error) {
	plan, err := s.config.Plans.Plan(planID)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidRequest)
	}
	credit, err := Retry(ctx, s.config.Retry, func(ctx context.Context) (*db.UserCredit, error) {
		return s.store.IncrementUserCredits(ctx, userID, plan.Credits)
	})
	if err != nil {
		log.Errorw(err, "failed to add credits to user "+userID)
		return nil, err
	}
	log.Infow("credits added", "user", userID, "plan", plan.ID, "credits", plan.Credits, "balance", credit.Amount)
	return credit, nil
}

// Credits returns the credit balance of the user, zero if the user never
// got any.
func (s *Service) Credits(ctx context.Context, userID string) (int64, error) {
	credit, err := Retry(ctx, s.config.Retry, func(ctx context.Context) (*db.UserCredit, error) {
		return s.store.UserCredit(ctx, userID)
	})
	if errors.Is(err, db.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return credit.Amount, nil
}

// History returns the transactions and subscriptions of the user, newest
// first.
func (s *Service) History(ctx context.Context, userID string) ([]*db.Transaction, []*db.Subscription, error) {
	txs, err := Retry(ctx, s.config.Retry, func(ctx context.Context) ([]*db.Transaction, error) {
		return s.store.UserTransactions(ctx, userID)
	})
	if err != nil {
		return nil, nil, err
	}
	subs, err := Retry(ctx, s.config.Retry, func(ctx context.Context) ([]*db.Subscription, error) {
		return s.store.UserSubscriptions(ctx, userID)
	})
	if err != nil {
		return nil, nil, err
	}
	return txs, subs, nil
}
