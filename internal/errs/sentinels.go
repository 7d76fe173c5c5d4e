// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")
)

// Action sentinels reported by the editing client.
var (
	// ErrAuthenticationRequired indicates there is no active session for a network-backed action.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrPersistenceFailed indicates the draft could not be saved; nothing was reconciled.
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrDerivedOperationFailed indicates the draft was saved but the follow-up action failed.
	ErrDerivedOperationFailed = errors.New("derived operation failed")

	// ErrActionInFlight indicates an action of the same kind is already running.
	ErrActionInFlight = errors.New("action in flight")
)
