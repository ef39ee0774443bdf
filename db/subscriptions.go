package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"
)

// CreateSubscription inserts a new subscription and sets its ID. Only one
// subscription may exist per order, a second one is rejected with
// ErrAlreadyExists. Called with a transaction context it joins that
// transaction.
func (ms *MongoStorage) CreateSubscription(ctx context.Context, sub *Subscription) error {
	if sub == nil || sub.UserID == "" || sub.OrderID == "" || sub.Plan == "" {
		return ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	sub.ID = primitive.NewObjectID()
	sub.CreatedAt = time.Now()
	if _, err := ms.subscriptions.InsertOne(ctx, sub); err != nil {
		sub.ID = primitive.NilObjectID
		return wrapErr(err)
	}
	return nil
}

// SubscriptionByOrder returns the subscription created for the given order.
func (ms *MongoStorage) SubscriptionByOrder(ctx context.Context, orderID string) (*Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	sub := &Subscription{}
	if err := ms.subscriptions.FindOne(ctx, bson.M{"orderId": orderID}).Decode(sub); err != nil {
		return nil, wrapErr(err)
	}
	return sub, nil
}

// UserSubscriptions returns every subscription of the user, newest first.
func (ms *MongoStorage) UserSubscriptions(ctx context.Context, userID string) ([]*Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := ms.subscriptions.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("failed to close subscriptions cursor", "error", err)
		}
	}()
	var subs []*Subscription
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, wrapErr(err)
	}
	return subs, nil
}
