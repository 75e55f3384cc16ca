package domain

import "errors"

// Stable error kinds surfaced to callers. Services and repositories wrap
// these with fmt.Errorf("%w: ...") so callers can branch with errors.Is
// while still getting a human-readable message.
var (
	// ErrNotFound signals an unknown symbol, instrument or account.
	// Returned to the caller, never retried.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument signals malformed input such as a non-positive
	// quantity or an empty symbol. Returned to the caller, never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInsufficientHoldings signals a sell exceeding the held quantity.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrTransientStore signals lock contention or a storage timeout.
	// Retried internally with bounded backoff before being surfaced.
	ErrTransientStore = errors.New("transient store error")
)
