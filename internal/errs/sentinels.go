// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMalformedRecord indicates an archival line that cannot be decoded into an account record.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInvalidEntityID indicates a shard/realm/num triple outside the encodable range.
	ErrInvalidEntityID = errors.New("invalid entity id")

	// ErrInvalidConfig indicates a configuration value that failed validation.
	ErrInvalidConfig = errors.New("invalid config")
)
