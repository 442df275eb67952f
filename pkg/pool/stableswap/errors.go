package stableswap

import "errors"

var (
	// ErrMalformedAccount marks a pool account blob whose shape does not
	// match the program's struct layout. Not retryable.
	ErrMalformedAccount = errors.New("malformed pool account data")

	// ErrPoolNotInitialized marks a well-formed record whose init flag is
	// unset. The pool must be created before it can be used.
	ErrPoolNotInitialized = errors.New("pool account is not initialized")

	// ErrValueOutOfRange marks a caller-supplied amount outside [0, 2^64).
	// Raised before any instruction bytes are produced.
	ErrValueOutOfRange = errors.New("value out of uint64 range")
)
