// Package db implements the billing ledger on top of MongoDB: payment
// transactions, subscriptions and per-user credit balances.
package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.vocdoni.io/dvote/log"
)

// defaultTimeout bounds every single store call that is not part of a
// longer operation such as migrations.
const defaultTimeout = 10 * time.Second

// MongoStorage uses an external MongoDB service for storing the billing
// ledger.
type MongoStorage struct {
	DBClient *mongo.Client
	database string

	transactions  *mongo.Collection
	subscriptions *mongo.Collection
	userCredits   *mongo.Collection
	migrations    *mongo.Collection
}

// New connects to the MongoDB server at url, selects the given database and
// applies any pending migration. Setting VOCDONI_MONGO_RESET_DB drops the
// billing collections before migrating.
func New(url, database string) (*MongoStorage, error) {
	if url == "" {
		return nil, fmt.Errorf("mongo URL is not defined")
	}
	if database == "" {
		return nil, fmt.Errorf("mongo database is not defined")
	}
	log.Infow("connecting to mongodb", "database", database)
	// preparing connection
	opts := options.Client()
	opts.ApplyURI(url)
	opts.SetMaxConnecting(200)
	timeout := time.Second * 10
	opts.ConnectTimeout = &timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	// check if the connection is successful
	ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	ms := &MongoStorage{
		DBClient: client,
		database: database,
	}
	ms.initCollections()
	if reset := os.Getenv("VOCDONI_MONGO_RESET_DB"); reset != "" {
		if err := ms.Reset(); err != nil {
			return nil, err
		}
		return ms, nil
	}
	if err := ms.RunMigrationsUp(); err != nil {
		return nil, err
	}
	return ms, nil
}

// initCollections sets the collection handles. Collections, validators and
// indexes are created by the migrations.
func (ms *MongoStorage) initCollections() {
	db := ms.DBClient.Database(ms.database)
	ms.transactions = db.Collection("transactions")
	ms.subscriptions = db.Collection("subscriptions")
	ms.userCredits = db.Collection("userCredits")
	ms.migrations = db.Collection("migrations")
}

// Close disconnects the underlying client.
func (ms *MongoStorage) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ms.DBClient.Disconnect(ctx); err != nil {
		log.Warn(err)
	}
}

// Reset drops every billing collection and applies all the migrations
// again. Intended for tests and development environments.
func (ms *MongoStorage) Reset() error {
	log.Infof("resetting database")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, col := range []*mongo.Collection{
		ms.transactions,
		ms.subscriptions,
		ms.userCredits,
		ms.migrations,
	} {
		if err := col.Drop(ctx); err != nil {
			return err
		}
	}
	return ms.RunMigrationsUp()
}

// String returns a short description of the storage for logging.
func (ms *MongoStorage) String() string {
	return fmt.Sprintf("mongodb:%s", ms.database)
}
