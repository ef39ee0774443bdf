// Package test provides testing utilities for the billing service, such as
// the MongoDB container the store tests run against.
package test

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/vocdoni/saas-billing/internal"
)

// MongoImage is the MongoDB image used by the test containers.
const MongoImage = "mongo:7.0"

// StartMongoContainer starts a single node MongoDB replica set. A replica
// set is required for multi-document transactions.
func StartMongoContainer(ctx context.Context) (*mongodb.MongoDBContainer, error) {
	return mongodb.Run(ctx, MongoImage, mongodb.WithReplicaSet("rs0"))
}

// MongoURI returns the connection string of the container. The replica set
// member is announced with the container hostname, so the client must
// connect directly instead of discovering the topology.
func MongoURI(ctx context.Context, container *mongodb.MongoDBContainer) (string, error) {
	uri, err := container.ConnectionString(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/?directConnection=true", uri), nil
}

// RandomDatabaseName returns a unique database name so that tests sharing a
// container do not see each other's data.
func RandomDatabaseName() string {
	return "billing-test-" + internal.RandomHex(8)
}
