package payments

import (
	"context"

	stripeapi "github.com/stripe/stripe-go/v81"
	"github.com/vocdoni/saas-billing/db"
	"github.com/vocdoni/saas-billing/stripe"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the ledger the service keeps in sync with the payment gateway.
// Connectivity failures must wrap db.ErrUnavailable and missing records
// db.ErrNotFound. *db.MongoStorage implements it.
type Store interface {
	// CreateTransaction keeps an ID already set on tx and fails with
	// db.ErrAlreadyExists if a transaction with that ID exists.
	CreateTransaction(ctx context.Context, tx *db.Transaction) error
	Transaction(ctx context.Context, id primitive.ObjectID) (*db.Transaction, error)
	PendingTransaction(ctx context.Context, orderID, userID string) (*db.Transaction, error)
	TransactionByOrder(ctx context.Context, orderID, userID string) (*db.Transaction, error)
	UserTransactions(ctx context.Context, userID string) ([]*db.Transaction, error)
	SettleTransaction(ctx context.Context, id primitive.ObjectID, status db.TransactionStatus,
		paymentID string) (*db.Transaction, error)
	IncrementUserCredits(ctx context.Context, userID string, amount int64) (*db.UserCredit, error)
	UserCredit(ctx context.Context, userID string) (*db.UserCredit, error)
	CreateSubscription(ctx context.Context, sub *db.Subscription) error
	SubscriptionByOrder(ctx context.Context, orderID string) (*db.Subscription, error)
	UserSubscriptions(ctx context.Context, userID string) ([]*db.Subscription, error)
	// WithTransaction runs fn atomically: the store calls fn makes with the
	// context it receives are all applied or none is.
	WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Gateway is the payment processor hosting the checkout pages.
// *stripe.Client implements it.
type Gateway interface {
	Configured() bool
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CheckoutSession(ctx context.Context, sessionID string, expandPaymentIntent bool) (*stripe.CheckoutSession, error)
	ValidateWebhookEvent(payload []byte, signatureHeader string) (*stripeapi.Event, error)
}
