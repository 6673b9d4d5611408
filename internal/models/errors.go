package models

import "errors"

// Sentinel errors shared across the retrieval and commentary packages.
// Callers match with errors.Is; wrapping adds the operation context.
var (
	// ErrIngest indicates raw text that cannot be ingested (empty, too short,
	// or not decodable as text).
	ErrIngest = errors.New("ingest error")

	// ErrNotFound indicates an operation against a key that has no state yet,
	// e.g. feedback on a passage with no generated commentary.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a malformed input at the boundary: an
	// out-of-range rating, an unknown persona, or an empty passage key.
	ErrValidation = errors.New("validation error")
)
