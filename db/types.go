package db

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransactionStatus is the lifecycle state of a payment transaction. The
// only allowed transitions are PENDING to SUCCESS and PENDING to FAILED.
type TransactionStatus string

const (
	TransactionPending TransactionStatus = "PENDING"
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
)

// Valid reports whether the status is one of the known values.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionSuccess, TransactionFailed:
		return true
	}
	return false
}

// Transaction records a single purchase attempt. OrderID holds the gateway
// checkout session id and PaymentID the gateway payment intent id, or the
// pending_<sessionId> placeholder until the payment settles. Amount is in
// minor currency units.
type Transaction struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"userId" bson:"userId"`
	Amount    int64              `json:"amount" bson:"amount"`
	Currency  string             `json:"currency" bson:"currency"`
	PaymentID string             `json:"paymentId" bson:"paymentId"`
	OrderID   string             `json:"orderId" bson:"orderId"`
	Plan      string             `json:"plan" bson:"plan"`
	Status    TransactionStatus  `json:"status" bson:"status"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Subscription is created together with the credit grant of a settled
// order. OrderID is unique across the collection.
type Subscription struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"userId" bson:"userId"`
	Plan      string             `json:"plan" bson:"plan"`
	PaymentID string             `json:"paymentId" bson:"paymentId"`
	OrderID   string             `json:"orderId" bson:"orderId"`
	Annual    bool               `json:"annual" bson:"annual"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// UserCredit is the credit balance of a user, keyed by user id. Balances
// are only ever incremented by this service.
type UserCredit struct {
	UserID    string    `json:"userId" bson:"_id"`
	Amount    int64     `json:"amount" bson:"amount"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}
