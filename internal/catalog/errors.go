package catalog

import "errors"

// Sentinel errors shared across the persistence and channel layers.
// Callers classify with errors.Is.
var (
	// ErrNilID is returned when an operation requires a non-nil identifier.
	ErrNilID = errors.New("catalog: identifier must not be nil")

	// ErrDisposed is returned when an operation is invoked after teardown.
	ErrDisposed = errors.New("catalog: store has been closed")

	// ErrNotFound is returned when a required entity does not exist.
	// Lookup methods prefer returning (nil, nil) for absence; ErrNotFound is
	// for operations that cannot proceed without the entity.
	ErrNotFound = errors.New("catalog: entity not found")

	// ErrQuotaExceeded is returned when a host's daily download limit is hit.
	ErrQuotaExceeded = errors.New("catalog: daily download quota exceeded")

	// ErrContentMismatch is returned when a downloaded payload's content type
	// does not match the expected media kind.
	ErrContentMismatch = errors.New("catalog: downloaded content type mismatch")

	// ErrSourceRejected is returned when every candidate media source for an
	// item has been rejected or exhausted.
	ErrSourceRejected = errors.New("catalog: no usable media source")
)
