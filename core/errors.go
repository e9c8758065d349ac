package core

import "errors"

// Failure taxonomy for grant operations. All of these are returned, never
// panicked, so calling routes can decide independently whether a failed
// reward should affect their own response. Duplicate and throttle
// suppression are deliberately absent: those are successful outcomes
// carried on Grant, not errors.
var (
	// ErrUserNotFound reports that the target user has no ledger record.
	// The grant performs no mutation and leaves no marker behind.
	ErrUserNotFound = errors.New("reward: user not found")

	// ErrUnknownAction reports an action id absent from the catalog.
	// Programmer error class; fails fast before any I/O.
	ErrUnknownAction = errors.New("reward: unknown action")

	// ErrInvalidAmount reports a non-positive amount passed to an
	// unconditional grant, rejected before touching storage.
	ErrInvalidAmount = errors.New("reward: amount must be positive")
)
