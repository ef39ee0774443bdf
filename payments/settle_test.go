package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	stripeapi "github.com/stripe/stripe-go/v81"
	stripewebhook "github.com/stripe/stripe-go/v81/webhook"
	"github.com/vocdoni/saas-billing/db"
	"github.com/vocdoni/saas-billing/stripe"
)

func TestSettlePayment(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	c.Run("Paid", func(c *qt.C) {
		env := newTestEnv(c)
		session, err := env.service.CreateStripeSession(ctx, testUserID, PlanPremium, testEmail)
		c.Assert(err, qt.IsNil)
		env.gateway.pay(session.ID, "pi_1")

		settlement, err := env.service.SettlePayment(ctx, session.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(settlement.Paid, qt.IsTrue)
		c.Assert(settlement.AlreadySettled, qt.IsFalse)
		c.Assert(settlement.Transaction.Status, qt.Equals, db.TransactionSuccess)
		c.Assert(settlement.Subscription.OrderID, qt.Equals, session.ID)
		c.Assert(settlement.Subscription.PaymentID, qt.Equals, "pi_1")
		c.Assert(settlement.UserCredit.Amount, qt.Equals, int64(1000))

		// settling again grants nothing
		settlement, err = env.service.SettlePayment(ctx, session.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(settlement.Paid, qt.IsTrue)
		c.Assert(settlement.AlreadySettled, qt.IsTrue)
		c.Assert(settlement.Subscription.OrderID, qt.Equals, session.ID)
		balance, _ := env.store.balance(testUserID)
		c.Assert(balance, qt.Equals, int64(1000))
		c.Assert(env.store.subscriptionCount(), qt.Equals, 1)
	})

	c.Run("NotPaid", func(c *qt.C) {
		env := newTestEnv(c)
		session, err := env.service.CreateStripeSession(ctx, testUserID, PlanBasic, testEmail)
		c.Assert(err, qt.IsNil)

		settlement, err := env.service.SettlePayment(ctx, session.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(settlement.Paid, qt.IsFalse)
		c.Assert(settlement.Transaction.Status, qt.Equals, db.TransactionFailed)
		_, ok := env.store.balance(testUserID)
		c.Assert(ok, qt.IsFalse)

		// a failed transaction is final, even if the session gets paid later
		env.gateway.pay(session.ID, "pi_late")
		settlement, err = env.service.SettlePayment(ctx, session.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(settlement.Paid, qt.IsFalse)
		c.Assert(settlement.AlreadySettled, qt.IsTrue)
		c.Assert(env.store.subscriptionCount(), qt.Equals, 0)
	})

	c.Run("ResumesAfterVerify", func(c *qt.C) {
		env := newTestEnv(c)
		session, err := env.service.CreateStripeSession(ctx, testUserID, PlanBasic, testEmail)
		c.Assert(err, qt.IsNil)
		env.gateway.pay(session.ID, "pi_1")
		paid, err := env.service.VerifyStripePayment(ctx, session.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(paid, qt.IsTrue)

		settlement, err := env.service.SettlePayment(ctx, session.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(settlement.Paid, qt.IsTrue)
		c.Assert(settlement.AlreadySettled, qt.IsFalse)
		c.Assert(settlement.UserCredit.Amount, qt.Equals, int64(500))
		c.Assert(settlement.Subscription.PaymentID, qt.Equals, "pi_1")
	})

	c.Run("ResumesAfterFailedGrant", func(c *qt.C) {
		env := newTestEnv(c)
		session, err := env.service.CreateStripeSession(ctx, testUserID, PlanBasic, testEmail)
		c.Assert(err, qt.IsNil)
		env.gateway.pay(session.ID, "pi_1")
		injected := fmt.Errorf("injected failure")
		env.store.failNext("IncrementUserCredits", injected)

		_, err = env.service.SettlePayment(ctx, session.ID)
		c.Assert(err, qt.ErrorIs, injected)
		c.Assert(env.store.transactionsOf(session.ID)[0].Status, qt.Equals, db.TransactionSuccess)
		c.Assert(env.store.subscriptionCount(), qt.Equals, 0)

		settlement, err := env.service.SettlePayment(ctx, session.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(settlement.AlreadySettled, qt.IsFalse)
		c.Assert(settlement.UserCredit.Amount, qt.Equals, int64(500))
	})

	c.Run("Concurrent", func(c *qt.C) {
		env := newTestEnv(c)
		session, err := env.service.CreateStripeSession(ctx, testUserID, PlanPremium, testEmail)
		c.Assert(err, qt.IsNil)
		env.gateway.pay(session.ID, "pi_1")

		const workers = 10
		var (
			wg         sync.WaitGroup
			mu         sync.Mutex
			granted    int
			settleErrs []error
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				settlement, err := env.service.SettlePayment(ctx, session.ID)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					settleErrs = append(settleErrs, err)
					return
				}
				if !settlement.AlreadySettled {
					granted++
				}
			}()
		}
		wg.Wait()
		c.Assert(settleErrs, qt.HasLen, 0)
		c.Assert(granted, qt.Equals, 1)
		balance, _ := env.store.balance(testUserID)
		c.Assert(balance, qt.Equals, int64(1000))
		c.Assert(env.service.locks.Len(), qt.Equals, 0)
	})

	c.Run("UnknownSession", func(c *qt.C) {
		env := newTestEnv(c)
		env.gateway.addSession(&stripe.CheckoutSession{
			ID:            "cs_forged",
			PaymentStatus: stripe.PaymentStatusPaid,
			Metadata:      map[string]string{stripe.MetadataUserID: testUserID, stripe.MetadataPlan: PlanPremium},
		})
		_, err := env.service.SettlePayment(ctx, "cs_forged")
		c.Assert(err, qt.ErrorIs, ErrNoPendingTransaction)
		c.Assert(env.store.subscriptionCount(), qt.Equals, 0)
	})
}

// webhookEvent builds a signed webhook delivery for the session.
func webhookEvent(c *qt.C, eventType stripeapi.EventType, session *stripe.CheckoutSession) ([]byte, string) {
	object := map[string]any{
		"id":             session.ID,
		"object":         "checkout.session",
		"payment_status": session.PaymentStatus,
		"metadata":       session.Metadata,
	}
	if session.PaymentIntentID != "" {
		object["payment_intent"] = session.PaymentIntentID
	}
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_" + session.ID,
		"object":      "event",
		"api_version": "2024-06-20",
		"type":        eventType,
		"data":        map[string]any{"object": object},
	})
	c.Assert(err, qt.IsNil)
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}

func TestHandleWebhookEvent(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	c.Run("CompletedPaid", func(c *qt.C) {
		env := newTestEnv(c)
		session, err := env.service.CreateStripeSession(ctx, testUserID, PlanBasic, testEmail)
		c.Assert(err, qt.IsNil)
		env.gateway.pay(session.ID, "pi_1")
		paidSession, err := env.gateway.CheckoutSession(ctx, session.ID, false)
		c.Assert(err, qt.IsNil)

		payload, signature := webhookEvent(c, stripeapi.EventTypeCheckoutSessionCompleted, paidSession)
		settlement, err := env.service.HandleWebhookEvent(ctx, payload, signature)
		c.Assert(err, qt.IsNil)
		c.Assert(settlement.Paid, qt.IsTrue)
		c.Assert(settlement.UserCredit.Amount, qt.Equals, int64(500))
		c.Assert(settlement.Transaction.PaymentID, qt.Equals, "pi_1")

		// redelivery is acknowledged without granting again
		settlement, err = env.service.HandleWebhookEvent(ctx, payload, signature)
		c.Assert(err, qt.IsNil)
		c.Assert(settlement.AlreadySettled, qt.IsTrue)
		balance, _ := env.store.balance(testUserID)
		c.Assert(balance, qt.Equals, int64(500))
	})

	c.Run("CompletedAwaitingPayment", func(c *qt.C) {
		env := newTestEnv(c)
		session, err := env.service.CreateStripeSession(ctx, testUserID, PlanBasic, testEmail)
		c.Assert(err, qt.IsNil)

		payload, signature := webhookEvent(c, stripeapi.EventTypeCheckoutSessionCompleted, session)
		settlement, err := env.service.HandleWebhookEvent(ctx, payload, signature)
		c.Assert(err, qt.IsNil)
		c.Assert(settlement, qt.IsNil)
		c.Assert(env.store.transactionsOf(session.ID)[0].Status, qt.Equals, db.TransactionPending)

		// the asynchronous payment succeeds later
		env.gateway.pay(session.ID, "pi_async")
		paidSession, err := env.gateway.CheckoutSession(ctx, session.ID, false)
		c.Assert(err, qt.IsNil)
		payload, signature = webhookEvent(c, stripeapi.EventTypeCheckoutSessionAsyncPaymentSucceeded, paidSession)
		settlement, err = env.service.HandleWebhookEvent(ctx, payload, signature)
		c.Assert(err, qt.IsNil)
		c.Assert(settlement.Paid, qt.IsTrue)
		c.Assert(settlement.UserCredit.Amount, qt.Equals, int64(500))
	})

	c.Run("AsyncPaymentFailed", func(c *qt.C) {
		env := newTestEnv(c)
		session, err := env.service.CreateStripeSession(ctx, testUserID, PlanPremium, testEmail)
		c.Assert(err, qt.IsNil)

		payload, signature := webhookEvent(c, stripeapi.EventTypeCheckoutSessionAsyncPaymentFailed, session)
		settlement, err := env.service.HandleWebhookEvent(ctx, payload, signature)
		c.Assert(err, qt.IsNil)
		c.Assert(settlement.Paid, qt.IsFalse)
		c.Assert(env.store.transactionsOf(session.ID)[0].Status, qt.Equals, db.TransactionFailed)
	})

	c.Run("UnhandledEvent", func(c *qt.C) {
		env := newTestEnv(c)
		payload, signature := webhookEvent(c, stripeapi.EventTypeCheckoutSessionExpired, &stripe.CheckoutSession{ID: "cs_1"})
		settlement, err := env.service.HandleWebhookEvent(ctx, payload, signature)
		c.Assert(err, qt.IsNil)
		c.Assert(settlement, qt.IsNil)
	})

	c.Run("InvalidSignature", func(c *qt.C) {
		env := newTestEnv(c)
		payload, _ := webhookEvent(c, stripeapi.EventTypeCheckoutSessionCompleted, &stripe.CheckoutSession{ID: "cs_1"})
		_, err := env.service.HandleWebhookEvent(ctx, payload, "t=1,v1=deadbeef")
		c.Assert(err, qt.ErrorIs, stripe.ErrWebhookValidation)
	})
}
