package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"
)

// CreateTransaction inserts a new transaction. An unset ID is generated, a
// set one is kept, so inserting the same transaction again after a lost
// reply fails with ErrAlreadyExists instead of creating a copy. A second
// PENDING transaction for the same user and order is also rejected with
// ErrAlreadyExists by the partial unique index on the collection.
func (ms *MongoStorage) CreateTransaction(ctx context.Context, tx *Transaction) error {
	if tx == nil || tx.UserID == "" || tx.OrderID == "" || !tx.Status.Valid() {
		return ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	now := time.Now()
	if tx.ID.IsZero() {
		tx.ID = primitive.NewObjectID()
	}
	tx.CreatedAt = now
	tx.UpdatedAt = now
	if _, err := ms.transactions.InsertOne(ctx, tx); err != nil {
		return wrapErr(err)
	}
	return nil
}

// Transaction returns the transaction with the given ID.
func (ms *MongoStorage) Transaction(ctx context.Context, id primitive.ObjectID) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	tx := &Transaction{}
	if err := ms.transactions.FindOne(ctx, bson.M{"_id": id}).Decode(tx); err != nil {
		return nil, wrapErr(err)
	}
	return tx, nil
}

// PendingTransaction returns the PENDING transaction of the user for the
// given order, or ErrNotFound if there is none.
func (ms *MongoStorage) PendingTransaction(ctx context.Context, orderID, userID string) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	filter := bson.M{
		"orderId": orderID,
		"userId":  userID,
		"status":  TransactionPending,
	}
	tx := &Transaction{}
	if err := ms.transactions.FindOne(ctx, filter).Decode(tx); err != nil {
		return nil, wrapErr(err)
	}
	return tx, nil
}

// TransactionByOrder returns the most recent transaction of the user for
// the given order whatever its status.
func (ms *MongoStorage) TransactionByOrder(ctx context.Context, orderID, userID string) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	filter := bson.M{"orderId": orderID, "userId": userID}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	tx := &Transaction{}
	if err := ms.transactions.FindOne(ctx, filter, opts).Decode(tx); err != nil {
		return nil, wrapErr(err)
	}
	return tx, nil
}

// UserTransactions returns every transaction of the user, newest first.
func (ms *MongoStorage) UserTransactions(ctx context.Context, userID string) ([]*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := ms.transactions.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("failed to close transactions cursor", "error", err)
		}
	}()
	var txs []*Transaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, wrapErr(err)
	}
	return txs, nil
}

// SettleTransaction moves a PENDING transaction to the final status. The
// update only matches rows still PENDING, so a transaction is settled at most
// once: if it was already settled (or does not exist) ErrNotFound is
// returned. An empty paymentID keeps the stored one.
func (ms *MongoStorage) SettleTransaction(ctx context.Context, id primitive.ObjectID,
	status TransactionStatus, paymentID string,
) (*Transaction, error) {
	if status != TransactionSuccess && status != TransactionFailed {
		return nil, fmt.Errorf("%w: cannot settle transaction as %q", ErrInvalidData, status)
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	set := bson.M{
		"status":    status,
		"updatedAt": time.Now(),
	}
	if paymentID != "" {
		set["paymentId"] = paymentID
	}
	filter := bson.M{"_id": id, "status": TransactionPending}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	tx := &Transaction{}
	err := ms.transactions.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(tx)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, wrapErr(err)
	}
	return tx, nil
}
