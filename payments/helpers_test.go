package payments

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	qt "github.com/frankban/quicktest"
	stripeapi "github.com/stripe/stripe-go/v81"
	stripewebhook "github.com/stripe/stripe-go/v81/webhook"
	"github.com/vocdoni/saas-billing/db"
	"github.com/vocdoni/saas-billing/stripe"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	testUserID        = "user_2x8Fq"
	testEmail         = "user@example.com"
	testFrontendURL   = "https://app.example.com"
	testWebhookSecret = "whsec_test"
)

// errStoreDown is what the store returns while the server is unreachable.
var errStoreDown = fmt.Errorf("%w: connection refused", db.ErrUnavailable)

// memStore is an in-memory Store with the uniqueness rules of the Mongo
// indexes, snapshot based transactions and injectable failures.
type memStore struct {
	mu            sync.Mutex
	transactions  []db.Transaction
	subscriptions []db.Subscription
	credits       map[string]db.UserCredit

	failures map[string][]error
	calls    map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		credits:  make(map[string]db.UserCredit),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// failNext makes the next calls to method fail with errs, one per call.
func (m *memStore) failNext(method string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = append(m.failures[method], errs...)
}

func (m *memStore) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// call registers a call to method and returns the injected failure, if
// any. It must be called holding the lock.
func (m *memStore) call(method string) error {
	m.calls[method]++
	if errs := m.failures[method]; len(errs) > 0 {
		m.failures[method] = errs[1:]
		return errs[0]
	}
	return nil
}

func (m *memStore) CreateTransaction(_ context.Context, tx *db.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateTransaction"); err != nil {
		return err
	}
	if tx.UserID == "" || tx.OrderID == "" || !tx.Status.Valid() {
		return db.ErrInvalidData
	}
	for _, t := range m.transactions {
		if t.ID == tx.ID {
			return fmt.Errorf("%w: duplicate id", db.ErrAlreadyExists)
		}
		if t.Status == db.TransactionPending && tx.Status == db.TransactionPending &&
			t.OrderID == tx.OrderID && t.UserID == tx.UserID {
			return db.ErrAlreadyExists
		}
	}
	now := time.Now()
	if tx.ID.IsZero() {
		tx.ID = primitive.NewObjectID()
	}
	tx.CreatedAt, tx.UpdatedAt = now, now
	m.transactions = append(m.transactions, *tx)
	return nil
}

func (m *memStore) Transaction(_ context.Context, id primitive.ObjectID) (*db.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("Transaction"); err != nil {
		return nil, err
	}
	for _, t := range m.transactions {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) PendingTransaction(_ context.Context, orderID, userID string) (*db.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("PendingTransaction"); err != nil {
		return nil, err
	}
	for _, t := range m.transactions {
		if t.OrderID == orderID && t.UserID == userID && t.Status == db.TransactionPending {
			return &t, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) TransactionByOrder(_ context.Context, orderID, userID string) (*db.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("TransactionByOrder"); err != nil {
		return nil, err
	}
	for i := len(m.transactions) - 1; i >= 0; i-- {
		if t := m.transactions[i]; t.OrderID == orderID && t.UserID == userID {
			return &t, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) UserTransactions(_ context.Context, userID string) ([]*db.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("UserTransactions"); err != nil {
		return nil, err
	}
	var txs []*db.Transaction
	for i := len(m.transactions) - 1; i >= 0; i-- {
		if t := m.transactions[i]; t.UserID == userID {
			txs = append(txs, &t)
		}
	}
	return txs, nil
}

func (m *memStore) SettleTransaction(_ context.Context, id primitive.ObjectID, status db.TransactionStatus,
	paymentID string,
) (*db.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SettleTransaction"); err != nil {
		return nil, err
	}
	if status != db.TransactionSuccess && status != db.TransactionFailed {
		return nil, db.ErrInvalidData
	}
	for i, t := range m.transactions {
		if t.ID != id || t.Status != db.TransactionPending {
			continue
		}
		t.Status = status
		if paymentID != "" {
			t.PaymentID = paymentID
		}
		t.UpdatedAt = time.Now()
		m.transactions[i] = t
		return &t, nil
	}
	return nil, db.ErrNotFound
}

func (m *memStore) IncrementUserCredits(_ context.Context, userID string, amount int64) (*db.UserCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("IncrementUserCredits"); err != nil {
		return nil, err
	}
	if userID == "" || amount <= 0 {
		return nil, db.ErrInvalidData
	}
	now := time.Now()
	credit, ok := m.credits[userID]
	if !ok {
		credit = db.UserCredit{UserID: userID, CreatedAt: now}
	}
	credit.Amount += amount
	credit.UpdatedAt = now
	m.credits[userID] = credit
	return &credit, nil
}

func (m *memStore) UserCredit(_ context.Context, userID string) (*db.UserCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("UserCredit"); err != nil {
		return nil, err
	}
	credit, ok := m.credits[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &credit, nil
}

func (m *memStore) CreateSubscription(_ context.Context, sub *db.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateSubscription"); err != nil {
		return err
	}
	for _, s := range m.subscriptions {
		if s.OrderID == sub.OrderID {
			return fmt.Errorf("%w: duplicate order", db.ErrAlreadyExists)
		}
	}
	sub.ID = primitive.NewObjectID()
	sub.CreatedAt = time.Now()
	m.subscriptions = append(m.subscriptions, *sub)
	return nil
}

func (m *memStore) SubscriptionByOrder(_ context.Context, orderID string) (*db.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SubscriptionByOrder"); err != nil {
		return nil, err
	}
	for _, s := range m.subscriptions {
		if s.OrderID == orderID {
			return &s, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) UserSubscriptions(_ context.Context, userID string) ([]*db.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("UserSubscriptions"); err != nil {
		return nil, err
	}
	var subs []*db.Subscription
	for i := len(m.subscriptions) - 1; i >= 0; i-- {
		if s := m.subscriptions[i]; s.UserID == userID {
			subs = append(subs, &s)
		}
	}
	return subs, nil
}

// WithTransaction restores the state it found if fn fails.
func (m *memStore) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	m.mu.Lock()
	if err := m.call("WithTransaction"); err != nil {
		m.mu.Unlock()
		return err
	}
	transactions := slices.Clone(m.transactions)
	subscriptions := slices.Clone(m.subscriptions)
	credits := make(map[string]db.UserCredit, len(m.credits))
	for k, v := range m.credits {
		credits[k] = v
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.transactions, m.subscriptions, m.credits = transactions, subscriptions, credits
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) transactionsOf(orderID string) []db.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txs []db.Transaction
	for _, t := range m.transactions {
		if t.OrderID == orderID {
			txs = append(txs, t)
		}
	}
	return txs
}

func (m *memStore) subscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

func (m *memStore) balance(userID string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	credit, ok := m.credits[userID]
	return credit.Amount, ok
}

// lostReplyStore applies the first transaction insert and then reports
// the connection failure the caller would see if the reply never arrived.
type lostReplyStore struct {
	*memStore
	lost bool
}

func (l *lostReplyStore) CreateTransaction(ctx context.Context, tx *db.Transaction) error {
	if err := l.memStore.CreateTransaction(ctx, tx); err != nil {
		return err
	}
	if !l.lost {
		l.lost = true
		return errStoreDown
	}
	return nil
}

// fakeGateway keeps checkout sessions in memory.
type fakeGateway struct {
	mu        sync.Mutex
	sessions  map[string]*stripe.CheckoutSession
	params    []*stripe.CheckoutSessionParams
	expanded  []bool
	createErr error
	getErr    error
	gets      int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: make(map[string]*stripe.CheckoutSession)}
}

func (*fakeGateway) Configured() bool { return true }

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.params = append(g.params, params)
	id := fmt.Sprintf("cs_test_%d", len(g.params))
	session := &stripe.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.stripe.com/c/pay/" + id,
		Status:        "open",
		PaymentStatus: "unpaid",
		AmountTotal:   params.Amount,
		Currency:      params.Currency,
		CustomerEmail: params.CustomerEmail,
		Metadata: map[string]string{
			stripe.MetadataUserID: params.UserID,
			stripe.MetadataPlan:   params.Plan,
		},
	}
	g.sessions[id] = session
	copied := *session
	return &copied, nil
}

func (g *fakeGateway) CheckoutSession(_ context.Context, sessionID string, expand bool) (*stripe.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gets++
	g.expanded = append(g.expanded, expand)
	if g.getErr != nil {
		return nil, g.getErr
	}
	session, ok := g.sessions[sessionID]
	if !ok {
		return nil, stripe.NewStripeError(stripe.ErrAPICallFailed.Code, "no such checkout session", nil)
	}
	copied := *session
	return &copied, nil
}

func (*fakeGateway) ValidateWebhookEvent(payload []byte, signatureHeader string) (*stripeapi.Event, error) {
	event, err := stripewebhook.ConstructEventWithOptions(payload, signatureHeader, testWebhookSecret,
		stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, stripe.NewStripeError(stripe.ErrWebhookValidation.Code, "invalid signature", err)
	}
	return &event, nil
}

// pay marks the session paid with the given payment intent, as the gateway
// does once the user completes the checkout.
func (g *fakeGateway) pay(sessionID, paymentIntentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[sessionID].Status = "complete"
	g.sessions[sessionID].PaymentStatus = stripe.PaymentStatusPaid
	g.sessions[sessionID].PaymentIntentID = paymentIntentID
}

func (g *fakeGateway) addSession(session *stripe.CheckoutSession) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[session.ID] = session
}

// sleepRecorder records the retry delays without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.delays)
}

type testEnv struct {
	service *Service
	store   *memStore
	gateway *fakeGateway
	sleeps  *sleepRecorder
}

func newTestEnv(c *qt.C) *testEnv {
	env := &testEnv{
		store:   newMemStore(),
		gateway: newFakeGateway(),
		sleeps:  &sleepRecorder{},
	}
	policy := DefaultRetryPolicy()
	policy.Sleep = env.sleeps.sleep
	service, err := New(env.store, env.gateway, &Config{
		FrontendURL: testFrontendURL,
		Retry:       policy,
	})
	c.Assert(err, qt.IsNil)
	env.service = service
	return env
}
