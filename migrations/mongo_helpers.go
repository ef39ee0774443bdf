package migrations

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.vocdoni.io/dvote/log"
)

// listCollectionsInDB returns the names of the collections in the given database.
func listCollectionsInDB(ctx context.Context, database *mongo.Database) ([]string, error) {
	names, err := database.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// dropIndexIfExists drops the named index, ignoring the error returned when
// the index does not exist.
func dropIndexIfExists(ctx context.Context, collection *mongo.Collection, name string) error {
	if _, err := collection.Indexes().DropOne(ctx, name); err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Name == "IndexNotFound" {
			log.Debugw("index not found, skipping drop", "collection", collection.Name(), "index", name)
			return nil
		}
		return err
	}
	return nil
}
