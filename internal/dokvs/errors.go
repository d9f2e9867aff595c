package dokvs

import "errors"

var (
	// ErrInvalidConfig reports construction parameters that can never
	// produce a working instance: non-positive n or l, bad key material,
	// or an unusable size.
	ErrInvalidConfig = errors.New("dokvs: invalid configuration")

	// ErrInvalidInput reports a caller bug on a single call: too many
	// pairs, a malformed value, or storage of the wrong length.
	ErrInvalidInput = errors.New("dokvs: invalid input")

	// ErrCannotEncode reports one of the negligible-probability
	// construction failures. It is never retried internally; retrying
	// with fresh hash keys is the caller's decision.
	ErrCannotEncode = errors.New("dokvs: cannot encode")

	// ErrInvariantViolation reports an internal inconsistency, for
	// example a peeling order that left no free vertex for a key.
	ErrInvariantViolation = errors.New("dokvs: internal invariant violated")
)
