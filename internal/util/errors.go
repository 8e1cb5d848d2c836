package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrUnresolvedRef indicates a record references a driver, session or
	// lap that does not exist in the canonical store yet
	ErrUnresolvedRef = errors.New("unresolved reference")

	// ErrMalformed indicates a raw field failed to parse
	ErrMalformed = errors.New("malformed value")

	// ErrAmbiguousIdentity indicates two distinct names generated the
	// same driver ID and need a curated alias entry
	ErrAmbiguousIdentity = errors.New("ambiguous identity")

	// ErrStoreUnavailable indicates the backing store cannot be reached
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
