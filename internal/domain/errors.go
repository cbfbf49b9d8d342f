package domain

import "errors"

var (
	// ErrValidation marks malformed input: empty item lists, unknown
	// status strings, non-positive quantities.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition marks a semantically illegal status change,
	// such as moving backward or out of completed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound marks a reference to an order or menu item that does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a lost race on a concurrent status update. The
	// caller may retry once with a fresh read.
	ErrConflict = errors.New("conflicting concurrent update")

	// ErrUnavailable marks a store failure. The operation did not apply
	// and no event was emitted.
	ErrUnavailable = errors.New("store unavailable")
)
