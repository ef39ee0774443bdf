package stripe

import (
	"encoding/json"

	stripeapi "github.com/stripe/stripe-go/v81"
	stripewebhook "github.com/stripe/stripe-go/v81/webhook"
)

// ValidateWebhookEvent validates the Stripe-Signature header of a webhook
// payload against the webhook secret and parses the event.
func (c *Client) ValidateWebhookEvent(payload []byte, signatureHeader string) (*stripeapi.Event, error) {
	if c == nil || c.config == nil || c.config.WebhookSecret == "" {
		return nil, ErrNotConfigured
	}
	event, err := stripewebhook.ConstructEventWithOptions(payload, signatureHeader, c.config.WebhookSecret,
		stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, NewStripeError(ErrWebhookValidation.Code, "webhook signature validation failed", err)
	}
	return &event, nil
}

// CheckoutSessionFromEvent extracts the checkout session carried by a
// checkout.session.* webhook event.
func CheckoutSessionFromEvent(event *stripeapi.Event) (*CheckoutSession, error) {
	if event == nil || event.Data == nil {
		return nil, NewStripeError(ErrInvalidEvent.Code, "event has no data", nil)
	}
	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, NewStripeError(ErrInvalidEvent.Code, "failed to parse checkout session from event", err)
	}
	if session.ID == "" {
		return nil, NewStripeError(ErrInvalidEvent.Code, "checkout session missing id", nil)
	}
	return checkoutSessionFromAPI(&session), nil
}
