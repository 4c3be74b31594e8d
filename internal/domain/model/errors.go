package model

import "errors"

// Error kinds returned by the account and vault services. Callers
// discriminate with errors.Is; adapters never return these directly.
var (
	// ErrRejected is returned when a uniqueness rule is violated on create or
	// register, or when an update targets a name that does not exist.
	ErrRejected = errors.New("rejected")

	// ErrUnauthorized is returned when authentication fails. No distinction is
	// made between an unknown username and a wrong credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoSession is returned when an operation needs an active account and
	// none is bound.
	ErrNoSession = errors.New("no active session")

	// ErrBackendUnavailable wraps any failure of the backing document store.
	ErrBackendUnavailable = errors.New("backend unavailable")
)
