package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// WithTransaction executes the provided function within a MongoDB transaction.
// It handles starting, committing, and aborting the transaction as needed.
// The context handed to fn carries the session, so every store method called
// with it joins the transaction. Either every write done by fn is committed
// or none is.
func (ms *MongoStorage) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	session, err := ms.DBClient.StartSession()
	if err != nil {
		return wrapErr(fmt.Errorf("failed to start session: %w", err))
	}
	defer session.EndSession(ctx)

	txnFn := func(sessCtx mongo.SessionContext) (any, error) {
		if err := fn(sessCtx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	txnCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err = session.WithTransaction(txnCtx, txnFn); err != nil {
		return wrapErr(fmt.Errorf("transaction failed: %w", err))
	}
	return nil
}
