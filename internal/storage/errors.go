package storage

import "errors"

var (
	// ErrNotFound is returned when a mutation targets a photo or event
	// that does not exist. Callers treat it as a clean miss, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable marks transient storage-layer failures. The whole
	// operation is safe to retry.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnknownEvent is returned when a write references an event that was
	// never created. Rejected before anything is persisted.
	ErrUnknownEvent = errors.New("unknown event")
)
