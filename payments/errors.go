package payments

import "fmt"

var (
	// ErrUnknownPlan is returned for a plan identifier missing from the
	// catalog.
	ErrUnknownPlan = fmt.Errorf("unknown plan")
	// ErrNoPendingTransaction is returned when a session is verified but no
	// PENDING transaction matches it: it was already settled, belongs to
	// another user or was never created by this service.
	ErrNoPendingTransaction = fmt.Errorf("no pending transaction found for session")
	// ErrAlreadySettled is returned when the credits of an order were
	// already granted.
	ErrAlreadySettled = fmt.Errorf("payment already settled")
	// ErrInvalidSession is returned for checkout sessions missing the
	// metadata set when they were created.
	ErrInvalidSession = fmt.Errorf("invalid checkout session")
	// ErrInvalidRequest is returned for empty identifiers.
	ErrInvalidRequest = fmt.Errorf("invalid request")
)
