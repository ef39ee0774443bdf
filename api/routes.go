package api

const (
	// ping route
	pingEndpoint = "/ping"

	// plans routes
	plansEndpoint = "/plans"

	// payments routes
	checkoutEndpoint        = "/payments/checkout"
	checkoutSessionEndpoint = "/payments/checkout/{sessionID}"
	checkoutVerifyEndpoint  = "/payments/checkout/{sessionID}/verify"
	webhookEndpoint         = "/payments/webhook"

	// credits routes
	creditsEndpoint = "/credits"
	historyEndpoint = "/credits/history"
)
