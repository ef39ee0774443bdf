package payments

import (
	"context"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/saas-billing/db"
)

func TestCreateSubscriptionRecord(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	c.Run("CreatesBoth", func(c *qt.C) {
		env := newTestEnv(c)
		record, err := env.service.CreateSubscriptionRecord(ctx, testUserID, PlanPremium, "pi_1", "cs_1", true)
		c.Assert(err, qt.IsNil)
		c.Assert(record.Subscription.ID.IsZero(), qt.IsFalse)
		c.Assert(record.Subscription.Plan, qt.Equals, PlanPremium)
		c.Assert(record.Subscription.PaymentID, qt.Equals, "pi_1")
		c.Assert(record.Subscription.OrderID, qt.Equals, "cs_1")
		c.Assert(record.Subscription.Annual, qt.IsTrue)
		c.Assert(record.UserCredit.Amount, qt.Equals, int64(1000))

		// an existing balance is incremented
		record, err = env.service.CreateSubscriptionRecord(ctx, testUserID, PlanBasic, "pi_2", "cs_2", false)
		c.Assert(err, qt.IsNil)
		c.Assert(record.UserCredit.Amount, qt.Equals, int64(1500))
		c.Assert(env.store.subscriptionCount(), qt.Equals, 2)
	})

	c.Run("FailureBetweenWrites", func(c *qt.C) {
		env := newTestEnv(c)
		injected := fmt.Errorf("injected failure")
		env.store.failNext("IncrementUserCredits", injected)

		_, err := env.service.CreateSubscriptionRecord(ctx, testUserID, PlanBasic, "pi_1", "cs_1", false)
		c.Assert(err, qt.ErrorIs, injected)
		c.Assert(env.store.callCount("CreateSubscription"), qt.Equals, 1)

		// neither the subscription nor the credits are visible
		c.Assert(env.store.subscriptionCount(), qt.Equals, 0)
		_, ok := env.store.balance(testUserID)
		c.Assert(ok, qt.IsFalse)
	})

	c.Run("FailureBetweenWritesWithBalance", func(c *qt.C) {
		env := newTestEnv(c)
		_, err := env.service.AddCreditsForPlan(ctx, testUserID, PlanBasic)
		c.Assert(err, qt.IsNil)
		injected := fmt.Errorf("injected failure")
		env.store.failNext("IncrementUserCredits", injected)

		_, err = env.service.CreateSubscriptionRecord(ctx, testUserID, PlanPremium, "pi_1", "cs_1", false)
		c.Assert(err, qt.ErrorIs, injected)
		c.Assert(env.store.subscriptionCount(), qt.Equals, 0)
		balance, _ := env.store.balance(testUserID)
		c.Assert(balance, qt.Equals, int64(500))
	})

	c.Run("TransientFailureRetriesWholeTransaction", func(c *qt.C) {
		env := newTestEnv(c)
		env.store.failNext("IncrementUserCredits", errStoreDown)

		record, err := env.service.CreateSubscriptionRecord(ctx, testUserID, PlanBasic, "pi_1", "cs_1", false)
		c.Assert(err, qt.IsNil)
		c.Assert(record.UserCredit.Amount, qt.Equals, int64(500))
		c.Assert(env.store.callCount("WithTransaction"), qt.Equals, 2)
		c.Assert(env.store.callCount("CreateSubscription"), qt.Equals, 2)
		c.Assert(env.store.subscriptionCount(), qt.Equals, 1)
	})

	c.Run("SameOrderTwice", func(c *qt.C) {
		env := newTestEnv(c)
		_, err := env.service.CreateSubscriptionRecord(ctx, testUserID, PlanBasic, "pi_1", "cs_1", false)
		c.Assert(err, qt.IsNil)

		_, err = env.service.CreateSubscriptionRecord(ctx, testUserID, PlanBasic, "pi_1", "cs_1", false)
		c.Assert(err, qt.ErrorIs, ErrAlreadySettled)
		c.Assert(env.store.subscriptionCount(), qt.Equals, 1)
		balance, _ := env.store.balance(testUserID)
		c.Assert(balance, qt.Equals, int64(500))
	})

	c.Run("InvalidInput", func(c *qt.C) {
		env := newTestEnv(c)
		_, err := env.service.CreateSubscriptionRecord(ctx, testUserID, "gold", "pi_1", "cs_1", false)
		c.Assert(err, qt.ErrorIs, ErrUnknownPlan)
		_, err = env.service.CreateSubscriptionRecord(ctx, testUserID, PlanBasic, "pi_1", "", false)
		c.Assert(err, qt.ErrorIs, ErrInvalidRequest)
		c.Assert(env.store.callCount("WithTransaction"), qt.Equals, 0)
	})

	c.Run("StoreDown", func(c *qt.C) {
		env := newTestEnv(c)
		env.store.failNext("WithTransaction", errStoreDown, errStoreDown, errStoreDown, errStoreDown)
		_, err := env.service.CreateSubscriptionRecord(ctx, testUserID, PlanBasic, "pi_1", "cs_1", false)
		c.Assert(err, qt.ErrorIs, db.ErrUnavailable)
		c.Assert(env.store.callCount("WithTransaction"), qt.Equals, 4)
	})
}
