package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IncrementUserCredits adds amount to the balance of the user, creating the
// balance with amount as initial value if the user has none. It returns the
// resulting balance. Called with a transaction context it joins that
// transaction.
func (ms *MongoStorage) IncrementUserCredits(ctx context.Context, userID string, amount int64) (*UserCredit, error) {
	if userID == "" || amount <= 0 {
		return nil, ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	now := time.Now()
	update := bson.M{
		"$inc":         bson.M{"amount": amount},
		"$set":         bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	credit := &UserCredit{}
	if err := ms.userCredits.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(credit); err != nil {
		return nil, wrapErr(err)
	}
	return credit, nil
}

// UserCredit returns the credit balance of the user, or ErrNotFound if the
// user never received credits.
func (ms *MongoStorage) UserCredit(ctx context.Context, userID string) (*UserCredit, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	credit := &UserCredit{}
	if err := ms.userCredits.FindOne(ctx, bson.M{"_id": userID}).Decode(credit); err != nil {
		return nil, wrapErr(err)
	}
	return credit, nil
}
