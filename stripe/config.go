package stripe

import (
	"fmt"
	"time"
)

// Config holds the Stripe configuration of the billing service. An empty
// APIKey leaves the gateway unconfigured: the client can still be built but
// every API call fails with ErrNotConfigured.
type Config struct {
	APIKey        string `yaml:"api_key" json:"api_key"`
	WebhookSecret string `yaml:"webhook_secret" json:"webhook_secret"`
	// BackendURL overrides the Stripe API endpoint, used against mocks.
	BackendURL string `yaml:"backend_url" json:"backend_url"`
	// MaxNetworkRetries is the number of times stripe-go retries a request
	// that failed on the network or with a retryable status.
	MaxNetworkRetries int64         `yaml:"max_network_retries" json:"max_network_retries"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
}

// Configured reports whether the API secret is set.
func (c *Config) Configured() bool {
	return c != nil && c.APIKey != ""
}

// Validate checks the values that would make the client misbehave at
// request time.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.MaxNetworkRetries < 0 {
		return fmt.Errorf("%w: negative max network retries", ErrInvalidConfiguration)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfiguration)
	}
	return nil
}
