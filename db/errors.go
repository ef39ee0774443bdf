package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrInvalidData   = fmt.Errorf("invalid data provided")
	ErrAlreadyExists = fmt.Errorf("already exists")
	// ErrUnavailable marks a failure to reach the database server. Errors
	// wrapping it are safe to retry.
	ErrUnavailable = fmt.Errorf("cannot reach database server")
)

// IsTransient reports whether err is a store connectivity failure that may
// succeed if the operation is attempted again.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// wrapErr classifies a raw driver error into the package sentinels, so
// callers never inspect driver types or error messages.
func wrapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, mongo.ErrClientDisconnected),
		errors.As(err, &topology.ServerSelectionError{}),
		mongo.IsNetworkError(err),
		mongo.IsTimeout(err):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return err
	}
}
