package services

import "errors"

// Error taxonomy for the orchestration core. Validation and signature
// failures surface synchronously to the caller; gateway failures during
// fax submission are recorded on the transaction instead of being thrown
// back to the webhook sender.
var (
	// ErrValidation marks user-correctable input problems.
	ErrValidation = errors.New("validation failed")

	// ErrSignatureInvalid rejects webhook payloads that fail
	// authentication. Such events never cause a state transition.
	ErrSignatureInvalid = errors.New("webhook signature verification failed")

	// ErrStaleTransition reports a compare-and-set that found the
	// transaction already advanced past the expected status. Callers
	// swallow it: a replayed webhook is acknowledged, not retried.
	ErrStaleTransition = errors.New("transaction already transitioned")

	// ErrInvalidTransition reports an edge the state machine does not
	// define. It indicates a programming error, not a race.
	ErrInvalidTransition = errors.New("illegal status transition")

	// ErrTransactionNotFound reports an unknown transaction id.
	ErrTransactionNotFound = errors.New("transaction not found")

	// Gateway adapter failures.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidRecipient   = errors.New("invalid recipient")
	ErrInvalidDocument    = errors.New("invalid document")
)
