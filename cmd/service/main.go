package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vocdoni/saas-billing/api"
	"github.com/vocdoni/saas-billing/db"
	"github.com/vocdoni/saas-billing/payments"
	"github.com/vocdoni/saas-billing/stripe"
	"go.vocdoni.io/dvote/log"
)

func main() {
	// define flags
	flag.StringP("host", "h", "0.0.0.0", "listen address")
	flag.IntP("port", "p", 8080, "listen port")
	flag.StringP("secret", "s", "", "secret of the HS256 JWT tokens of the callers")
	flag.String("mongoURL", "", "The URL of the MongoDB server")
	flag.String("mongoDB", "saas-billing", "The name of the MongoDB database")
	flag.Int("migrationsDown", 0, "roll back the given number of database migrations and exit")
	flag.String("stripeApiSecret", "", "Stripe API secret key, payments are disabled if empty")
	flag.String("stripeWebhookSecret", "", "Stripe webhook signing secret")
	flag.Int64("stripeMaxNetworkRetries", 2, "retries of the Stripe client on network errors")
	flag.Duration("stripeTimeout", 30*time.Second, "timeout of the requests to the Stripe API")
	flag.String("frontendURL", "", "base URL the checkout page redirects the user to")
	flag.String("currency", payments.DefaultCurrency, "currency the plans are charged in")
	flag.Int("storeRetries", 3, "retries of the storage operations failing with a transient error")
	flag.Duration("storeRetryDelay", time.Second, "delay before the first storage retry, doubled on each attempt")
	flag.String("logLevel", "info", "log level (debug, info, warn, error)")
	// parse flags
	flag.Parse()
	// initialize Viper
	viper.SetEnvPrefix("VOCDONI")
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		panic(err)
	}
	viper.AutomaticEnv()
	log.Init(viper.GetString("logLevel"), "stdout", nil)

	// read the configuration
	host := viper.GetString("host")
	port := viper.GetInt("port")
	secret := viper.GetString("secret")
	mongoURL := viper.GetString("mongoURL")
	mongoDB := viper.GetString("mongoDB")

	// initialize the MongoDB database
	database, err := db.New(mongoURL, mongoDB)
	if err != nil {
		log.Fatalf("could not create the MongoDB database: %v", err)
	}
	defer database.Close()
	if steps := viper.GetInt("migrationsDown"); steps > 0 {
		if err := database.RunMigrationsDown(steps); err != nil {
			log.Fatalf("could not roll back migrations: %v", err)
		}
		log.Infow("migrations rolled back", "steps", steps)
		return
	}
	if secret == "" {
		log.Fatal("secret is required")
	}

	// create the Stripe client, an empty API secret disables payments
	stripeConfig := &stripe.Config{
		APIKey:            viper.GetString("stripeApiSecret"),
		WebhookSecret:     viper.GetString("stripeWebhookSecret"),
		MaxNetworkRetries: viper.GetInt64("stripeMaxNetworkRetries"),
		Timeout:           viper.GetDuration("stripeTimeout"),
	}
	if err := stripeConfig.Validate(); err != nil {
		log.Fatalf("invalid stripe configuration: %v", err)
	}
	gateway := stripe.New(stripeConfig)

	// create the payments service
	retry := payments.DefaultRetryPolicy()
	retry.Retries = viper.GetInt("storeRetries")
	retry.Delay = viper.GetDuration("storeRetryDelay")
	service, err := payments.New(database, gateway, &payments.Config{
		FrontendURL: viper.GetString("frontendURL"),
		Currency:    viper.GetString("currency"),
		Retry:       retry,
	})
	if err != nil {
		log.Fatalf("could not create the payments service: %v", err)
	}

	// create the local API server
	server := api.New(&api.Config{
		Host:     host,
		Port:     port,
		Secret:   secret,
		Payments: service,
	})
	server.Start()
	log.Infow("server started", "host", host, "port", port, "paymentsEnabled", gateway.Configured())

	// wait until the process is signaled, the server runs in a goroutine
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Warnw("failed to stop the server", "error", err)
	}
}
