package apicommon

import (
	"time"

	"github.com/vocdoni/saas-billing/db"
	"github.com/vocdoni/saas-billing/payments"
	"github.com/vocdoni/saas-billing/stripe"
)

// User is the authenticated caller, built from the JWT claims.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// PlansResponse lists the purchasable plans.
type PlansResponse struct {
	Plans    []payments.Plan `json:"plans"`
	Currency string          `json:"currency"`
}

// CheckoutRequest is the body of a checkout session request.
type CheckoutRequest struct {
	Plan string `json:"plan"`
}

// CheckoutResponse is returned when a checkout session is created. The
// client redirects the user to URL.
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CheckoutSessionResponse describes a checkout session of the caller.
type CheckoutSessionResponse struct {
	SessionID     string `json:"sessionId"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	Plan          string `json:"plan"`
	AmountTotal   int64  `json:"amountTotal"`
	Currency      string `json:"currency"`
}

// CheckoutSessionResponseFrom converts the gateway session.
func CheckoutSessionResponseFrom(session *stripe.CheckoutSession) *CheckoutSessionResponse {
	return &CheckoutSessionResponse{
		SessionID:     session.ID,
		Status:        session.Status,
		PaymentStatus: session.PaymentStatus,
		Plan:          session.Plan(),
		AmountTotal:   session.AmountTotal,
		Currency:      session.Currency,
	}
}

// VerifyResponse is the outcome of settling a checkout session.
type VerifyResponse struct {
	SessionID      string `json:"sessionId"`
	Paid           bool   `json:"paid"`
	AlreadySettled bool   `json:"alreadySettled"`
	// Credits is the balance of the user after the settlement.
	Credits int64 `json:"credits"`
}

// CreditsResponse is the credit balance of the caller.
type CreditsResponse struct {
	Credits int64 `json:"credits"`
}

// Transaction is the public view of a ledger transaction.
type Transaction struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	OrderID   string    `json:"orderId"`
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// TransactionFrom converts a ledger transaction.
func TransactionFrom(tx *db.Transaction) *Transaction {
	return &Transaction{
		ID:        tx.ID.Hex(),
		Amount:    tx.Amount,
		Currency:  tx.Currency,
		OrderID:   tx.OrderID,
		Plan:      tx.Plan,
		Status:    string(tx.Status),
		CreatedAt: tx.CreatedAt,
	}
}

// Subscription is the public view of a granted plan.
type Subscription struct {
	ID        string    `json:"id"`
	Plan      string    `json:"plan"`
	OrderID   string    `json:"orderId"`
	Annual    bool      `json:"annual"`
	CreatedAt time.Time `json:"createdAt"`
}

// SubscriptionFrom converts a ledger subscription.
func SubscriptionFrom(sub *db.Subscription) *Subscription {
	return &Subscription{
		ID:        sub.ID.Hex(),
		Plan:      sub.Plan,
		OrderID:   sub.OrderID,
		Annual:    sub.Annual,
		CreatedAt: sub.CreatedAt,
	}
}

// HistoryResponse lists the transactions and subscriptions of the caller,
// newest first.
type HistoryResponse struct {
	Transactions  []*Transaction  `json:"transactions"`
	Subscriptions []*Subscription `json:"subscriptions"`
}
