// Package payments keeps the billing ledger consistent with the checkout
// sessions of the payment gateway: it opens sessions, records the pending
// transactions, reconciles them once the gateway reports the payment status
// and grants the credits of the paid plans.
package payments

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vocdoni/saas-billing/db"
	"github.com/vocdoni/saas-billing/internal"
	"github.com/vocdoni/saas-billing/stripe"
	"go.vocdoni.io/dvote/log"
)

// DefaultCurrency is the currency of the plan prices.
const DefaultCurrency = "usd"

// PendingPaymentPrefix prefixes the session ID to build the payment ID of a
// transaction until the gateway assigns the real one.
const PendingPaymentPrefix = "pending_"

// checkoutSessionIDTemplate is replaced by the gateway with the session ID
// when redirecting the user.
const checkoutSessionIDTemplate = "{CHECKOUT_SESSION_ID}"

// Config holds the service configuration.
type Config struct {
	// FrontendURL is the base URL the checkout page redirects to.
	FrontendURL string
	Currency    string
	Plans       Catalog
	Retry       RetryPolicy
}

// Service orchestrates checkout sessions, transactions and credits.
type Service struct {
	store   Store
	gateway Gateway
	config  Config
	locks   *stripe.LockManager
	now     func() time.Time
}

// New creates the payments service. A nil gateway disables the operations
// that need it, they fail with stripe.ErrNotConfigured. Unset configuration
// values take their defaults.
func New(store Store, gateway Gateway, config *Config) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("payments store is required")
	}
	if config == nil {
		config = &Config{}
	}
	cfg := *config
	cfg.FrontendURL = strings.TrimSuffix(cfg.FrontendURL, "/")
	if cfg.FrontendURL == "" {
		return nil, fmt.Errorf("frontend URL is required")
	}
	if _, err := url.Parse(cfg.FrontendURL); err != nil {
		return nil, fmt.Errorf("invalid frontend URL: %w", err)
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.Plans == nil {
		cfg.Plans = DefaultCatalog()
	}
	if err := cfg.Plans.validate(); err != nil {
		return nil, err
	}
	cfg.Retry = cfg.Retry.withDefaults()
	if gateway == nil {
		gateway = stripe.New(nil)
	}
	return &Service{
		store:   store,
		gateway: gateway,
		config:  cfg,
		locks:   stripe.NewLockManager(),
		now:     time.Now,
	}, nil
}

// Plans returns the plan catalog ordered by price.
func (s *Service) Plans() []Plan {
	return s.config.Plans.List()
}

// Currency returns the currency the plans are charged in.
func (s *Service) Currency() string {
	return s.config.Currency
}

// redirectToken is the payload of the token appended to the redirect URLs.
type redirectToken struct {
	Timestamp int64  `json:"timestamp"`
	OrderID   string `json:"orderId"`
}

// redirectURL builds the URL of the given frontend path carrying the
// session ID (templated by the gateway) and an encoded token.
func (s *Service) redirectURL(path string) (string, error) {
	token, err := internal.EncodeJSONToken(redirectToken{
		Timestamp: s.now().UnixMilli(),
		OrderID:   checkoutSessionIDTemplate,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s?session_id=%s&token=%s",
		s.config.FrontendURL, path, checkoutSessionIDTemplate, url.QueryEscape(token)), nil
}

// CreateStripeSession opens a hosted checkout session charging the price of
// the plan to the user and records the PENDING transaction of the session
// before returning it. The caller redirects the user to the session URL.
func (s *Service) CreateStripeSession(ctx context.Context, userID, planID, email string) (*stripe.CheckoutSession, error) {
	if !s.gateway.Configured() {
		return nil, stripe.ErrNotConfigured
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidRequest)
	}
	plan, err := s.config.Plans.Plan(planID)
	if err != nil {
		return nil, err
	}
	if email != "" && !internal.ValidEmail(email) {
		// the checkout page asks for the email instead
		log.Debugw("ignoring invalid customer email", "user", userID)
		email = ""
	}
	successURL, err := s.redirectURL("/payment/success")
	if err != nil {
		return nil, err
	}
	cancelURL, err := s.redirectURL("/payment/cancel")
	if err != nil {
		return nil, err
	}
	session, err := s.gateway.CreateCheckoutSession(ctx, &stripe.CheckoutSessionParams{
		UserID:        userID,
		Plan:          plan.ID,
		ProductName:   plan.ProductName(),
		Description:   plan.Description(),
		Amount:        plan.Price,
		Currency:      s.config.Currency,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		CustomerEmail: email,
	})
	if err != nil {
		log.Errorw(err, "failed to create checkout session")
		return nil, err
	}
	if _, err := s.CreateTransactionRecord(ctx, userID, plan.Price, s.config.Currency,
		PendingPaymentPrefix+session.ID, session.ID, plan.ID, db.TransactionPending); err != nil {
		return nil, err
	}
	log.Infow("checkout session created", "session", session.ID, "user", userID, "plan", plan.ID)
	return session, nil
}

// GetStripeSession returns the checkout session as the gateway reports it.
func (s *Service) GetStripeSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	if !s.gateway.Configured() {
		return nil, stripe.ErrNotConfigured
	}
	return s.gateway.CheckoutSession(ctx, sessionID, false)
}
