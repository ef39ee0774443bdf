// Package api provides the HTTP API of the billing service
//
//	@title						Vocdoni Billing API
//	@version					1.0
//	@description				Checkout sessions, payment settlement and credit balances
//
//	@BasePath					/
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the JWT token.
//
//	@tag.name					plans
//	@tag.description			Plan catalog
//
//	@tag.name					payments
//	@tag.description			Checkout sessions and settlement
//
//	@tag.name					credits
//	@tag.description			Credit balances and billing history
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/vocdoni/saas-billing/payments"
	"go.vocdoni.io/dvote/log"
)

// Config holds the API configuration.
type Config struct {
	Host string
	Port int
	// Secret signs the HS256 JWT tokens of the callers.
	Secret   string
	Payments *payments.Service
}

// API type represents the API HTTP server with JWT authentication capabilities.
type API struct {
	auth     *jwtauth.JWTAuth
	host     string
	port     int
	router   *chi.Mux
	server   *http.Server
	payments *payments.Service
}

// New creates a new API HTTP server. It does not start the server. Use Start() for that.
func New(conf *Config) *API {
	if conf == nil || conf.Payments == nil {
		return nil
	}
	return &API{
		auth:     jwtauth.New("HS256", []byte(conf.Secret), nil),
		host:     conf.Host,
		port:     conf.Port,
		payments: conf.Payments,
	}
}

// Start starts the API HTTP server (non blocking).
func (a *API) Start() {
	a.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.host, a.port),
		Handler:           a.initRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (a *API) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() http.Handler {
	// Create the router with a basic middleware stack
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Throttle(100))
	r.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	r.Use(middleware.Timeout(45 * time.Second))

	// protected routes
	r.Group(func(r chi.Router) {
		// seek, verify and validate JWT tokens
		r.Use(jwtauth.Verifier(a.auth))
		// handle valid JWT tokens
		r.Use(a.authenticator)
		// create a checkout session
		log.Infow("new route", "method", "POST", "path", checkoutEndpoint)
		r.Post(checkoutEndpoint, a.createCheckoutHandler)
		// get a checkout session
		log.Infow("new route", "method", "GET", "path", checkoutSessionEndpoint)
		r.Get(checkoutSessionEndpoint, a.checkoutSessionHandler)
		// verify and settle a checkout session
		log.Infow("new route", "method", "POST", "path", checkoutVerifyEndpoint)
		r.Post(checkoutVerifyEndpoint, a.verifyCheckoutHandler)
		// credit balance
		log.Infow("new route", "method", "GET", "path", creditsEndpoint)
		r.Get(creditsEndpoint, a.creditsHandler)
		// billing history
		log.Infow("new route", "method", "GET", "path", historyEndpoint)
		r.Get(historyEndpoint, a.historyHandler)
	})

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get(pingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
			if _, err := w.Write([]byte(".")); err != nil {
				log.Warnw("failed to write ping response", "error", err)
			}
		})
		// plan catalog
		log.Infow("new route", "method", "GET", "path", plansEndpoint)
		r.Get(plansEndpoint, a.plansHandler)
		// handle stripe webhook
		log.Infow("new route", "method", "POST", "path", webhookEndpoint)
		r.Post(webhookEndpoint, a.webhookHandler)
	})
	a.router = r
	return r
}
