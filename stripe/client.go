// Package stripe wraps the stripe-go API client with the checkout and
// webhook operations the billing service needs.
package stripe

import (
	"context"
	"net/http"
	"time"

	stripeapi "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"go.vocdoni.io/dvote/log"
)

// Metadata keys set on every checkout session, used to link the session
// back to the user and the plan when it is verified.
const (
	MetadataUserID = "userId"
	MetadataPlan   = "plan"
)

// PaymentStatusPaid is the payment status of a checkout session whose funds
// are available.
const PaymentStatusPaid = string(stripeapi.CheckoutSessionPaymentStatusPaid)

const defaultTimeout = 30 * time.Second

// Client wraps the Stripe API client with additional functionality
type Client struct {
	config *Config
	api    *client.API
}

// New creates a new Stripe client with the given configuration. A missing
// configuration or API key returns a client that refuses every call with
// ErrNotConfigured.
func New(config *Config) *Client {
	if !config.Configured() {
		log.Warnw("stripe API secret not set, payment operations are disabled")
		return &Client{config: config}
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	backendConfig := &stripeapi.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripeapi.Int64(config.MaxNetworkRetries),
		LeveledLogger:     &stripeapi.LeveledLogger{Level: stripeapi.LevelError},
	}
	if config.BackendURL != "" {
		backendConfig.URL = stripeapi.String(config.BackendURL)
	}
	backend := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendConfig)
	api := &client.API{}
	api.Init(config.APIKey, &stripeapi.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})
	return &Client{
		config: config,
		api:    api,
	}
}

// Configured reports whether the client can reach the Stripe API.
func (c *Client) Configured() bool {
	return c != nil && c.api != nil
}

// CheckoutSessionParams holds parameters for creating a one-time payment
// checkout session for a plan.
type CheckoutSessionParams struct {
	UserID        string
	Plan          string
	ProductName   string
	Description   string
	Amount        int64
	Currency      string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
}

// CheckoutSession is the subset of a Stripe checkout session the billing
// service works with.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url,omitempty"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"paymentStatus"`
	AmountTotal   int64             `json:"amountTotal"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customerEmail,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	// PaymentIntentID is the stable identifier of the payment, empty if the
	// session has no payment intent yet.
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
}

// Paid reports whether Stripe considers the session paid.
func (cs *CheckoutSession) Paid() bool {
	return cs.PaymentStatus == PaymentStatusPaid
}

// UserID returns the user the session was created for.
func (cs *CheckoutSession) UserID() string {
	return cs.Metadata[MetadataUserID]
}

// Plan returns the plan the session was created for.
func (cs *CheckoutSession) Plan() string {
	return cs.Metadata[MetadataPlan]
}

// CreateCheckoutSession creates a hosted checkout session paying once for
// the given amount by card. The user and plan are stored in the session
// metadata.
// API description https://docs.stripe.com/api/checkout/sessions
func (c *Client) CreateCheckoutSession(ctx context.Context, params *CheckoutSessionParams) (*CheckoutSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	checkoutParams := &stripeapi.CheckoutSessionParams{
		PaymentMethodTypes: stripeapi.StringSlice([]string{"card"}),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
					Currency: stripeapi.String(params.Currency),
					ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripeapi.String(params.ProductName),
						Description: stripeapi.String(params.Description),
					},
					UnitAmount: stripeapi.Int64(params.Amount),
				},
				Quantity: stripeapi.Int64(1),
			},
		},
		Mode:       stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL: stripeapi.String(params.SuccessURL),
		CancelURL:  stripeapi.String(params.CancelURL),
	}
	if params.CustomerEmail != "" {
		checkoutParams.CustomerEmail = stripeapi.String(params.CustomerEmail)
	}
	checkoutParams.Context = ctx
	checkoutParams.AddMetadata(MetadataUserID, params.UserID)
	checkoutParams.AddMetadata(MetadataPlan, params.Plan)

	session, err := c.api.CheckoutSessions.New(checkoutParams)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to create checkout session", err)
	}
	log.Debugw("stripe checkout session created", "session", session.ID, "user", params.UserID, "plan", params.Plan)
	return checkoutSessionFromAPI(session), nil
}

// CheckoutSession retrieves a checkout session by ID. With
// expandPaymentIntent the payment intent is expanded in the response.
func (c *Client) CheckoutSession(ctx context.Context, sessionID string, expandPaymentIntent bool) (*CheckoutSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripeapi.CheckoutSessionParams{}
	params.Context = ctx
	if expandPaymentIntent {
		params.AddExpand("payment_intent")
	}
	session, err := c.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to get checkout session", err)
	}
	return checkoutSessionFromAPI(session), nil
}

// checkoutSessionFromAPI converts the stripe-go session. The payment intent
// field holds either an ID or the expanded object, stripe-go decodes both
// into a PaymentIntent carrying the ID.
func checkoutSessionFromAPI(session *stripeapi.CheckoutSession) *CheckoutSession {
	cs := &CheckoutSession{
		ID:            session.ID,
		URL:           session.URL,
		Status:        string(session.Status),
		PaymentStatus: string(session.PaymentStatus),
		AmountTotal:   session.AmountTotal,
		Currency:      string(session.Currency),
		CustomerEmail: session.CustomerEmail,
		Metadata:      session.Metadata,
	}
	if session.PaymentIntent != nil {
		cs.PaymentIntentID = session.PaymentIntent.ID
	}
	return cs
}
