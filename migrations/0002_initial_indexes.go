package migrations

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func init() {
	AddMigration(2, "initial_indexes", upInitialIndexes, downInitialIndexes)
}

const (
	transactionsPendingOrderIndex = "pending_order_user_unique"
	transactionsUserIndex         = "user_created"
	subscriptionsOrderIndex       = "order_unique"
	subscriptionsUserIndex        = "user_created"
)

func upInitialIndexes(ctx context.Context, database *mongo.Database) error {
	transactions := database.Collection("transactions")
	subscriptions := database.Collection("subscriptions")

	if _, err := transactions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// at most one PENDING transaction per (order, user)
		{
			Keys: bson.D{
				{Key: "orderId", Value: 1},
				{Key: "userId", Value: 1},
			},
			Options: options.Index().
				SetName(transactionsPendingOrderIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "PENDING"}),
		},
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
			Options: options.Index().SetName(transactionsUserIndex),
		},
	}); err != nil {
		return fmt.Errorf("failed to create indexes for transactions: %w", err)
	}

	if _, err := subscriptions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// an order is credited once
		{
			Keys:    bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().SetName(subscriptionsOrderIndex).SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
			Options: options.Index().SetName(subscriptionsUserIndex),
		},
	}); err != nil {
		return fmt.Errorf("failed to create indexes for subscriptions: %w", err)
	}
	return nil
}

func downInitialIndexes(ctx context.Context, database *mongo.Database) error {
	transactions := database.Collection("transactions")
	subscriptions := database.Collection("subscriptions")
	for _, name := range []string{transactionsPendingOrderIndex, transactionsUserIndex} {
		if err := dropIndexIfExists(ctx, transactions, name); err != nil {
			return fmt.Errorf("failed to drop index %s on transactions: %w", name, err)
		}
	}
	for _, name := range []string{subscriptionsOrderIndex, subscriptionsUserIndex} {
		if err := dropIndexIfExists(ctx, subscriptions, name); err != nil {
			return fmt.Errorf("failed to drop index %s on subscriptions: %w", name, err)
		}
	}
	return nil
}
