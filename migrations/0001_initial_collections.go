package migrations

import (
	"context"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func init() {
	AddMigration(1, "initial_collections", upInitialCollections, downInitialCollections)
}

// collectionsToCreate must exist before any transaction runs, MongoDB
// transactions cannot create collections implicitly on every server version.
var collectionsToCreate = []string{
	"transactions",
	"subscriptions",
	"userCredits",
	"migrations",
}

var collectionsValidators = map[string]bson.M{
	"transactions":  transactionsCollectionValidator,
	"subscriptions": subscriptionsCollectionValidator,
	"userCredits":   userCreditsCollectionValidator,
}

var transactionsCollectionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "userId", "amount", "currency", "paymentId", "orderId", "plan", "status"},
		"properties": bson.M{
			"userId": bson.M{
				"bsonType":    "string",
				"description": "must be a string and is required",
				"minLength":   1,
			},
			"amount": bson.M{
				"bsonType":    []string{"long", "int"},
				"description": "must be an integer amount in minor units",
				"minimum":     0,
			},
			"currency": bson.M{
				"bsonType":    "string",
				"description": "must be a currency code and is required",
				"minLength":   3,
			},
			"orderId": bson.M{
				"bsonType":    "string",
				"description": "must be the gateway session id and is required",
				"minLength":   1,
			},
			"status": bson.M{
				"enum":        []string{"PENDING", "SUCCESS", "FAILED"},
				"description": "must be one of PENDING, SUCCESS or FAILED",
			},
		},
	},
}

var subscriptionsCollectionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "userId", "plan", "paymentId", "orderId"},
		"properties": bson.M{
			"userId": bson.M{
				"bsonType":    "string",
				"description": "must be a string and is required",
				"minLength":   1,
			},
			"plan": bson.M{
				"bsonType":    "string",
				"description": "must be a string and is required",
			},
			"orderId": bson.M{
				"bsonType":    "string",
				"description": "must be the gateway session id and is required",
				"minLength":   1,
			},
		},
	},
}

var userCreditsCollectionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "amount"},
		"properties": bson.M{
			"amount": bson.M{
				"bsonType":    []string{"long", "int"},
				"description": "must be a non negative integer and is required",
				"minimum":     0,
			},
		},
	},
}

func upInitialCollections(ctx context.Context, database *mongo.Database) error {
	currentCollections, err := listCollectionsInDB(ctx, database)
	if err != nil {
		return fmt.Errorf("failed to get current collections: %w", err)
	}
	for _, name := range collectionsToCreate {
		validator, hasValidator := collectionsValidators[name]
		if slices.Contains(currentCollections, name) {
			if !hasValidator {
				continue
			}
			if err := database.RunCommand(ctx, bson.D{
				{Key: "collMod", Value: name},
				{Key: "validator", Value: validator},
			}).Err(); err != nil {
				return fmt.Errorf("failed to update %s validator: %w", name, err)
			}
			continue
		}
		opts := options.CreateCollection()
		if hasValidator {
			opts = opts.SetValidator(validator).SetValidationLevel("strict").SetValidationAction("error")
		}
		if err := database.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}
	return nil
}

func downInitialCollections(context.Context, *mongo.Database) error {
	// dropping the ledger is too destructive, and the up func is idempotent
	return nil
}
