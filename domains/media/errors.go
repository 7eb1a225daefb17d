package media

import (
	"errors"

	"github.com/AzielCF/az-wrap/pkg/future"
)

var (
	// ErrNotYetVisible marks a deferred load. It is a state, not a failure.
	ErrNotYetVisible = errors.New("not yet visible")
	// ErrCancelled is a user-initiated cancellation.
	ErrCancelled = future.ErrCancelled
	// ErrTransportFailure wraps any fetch or network error.
	ErrTransportFailure = errors.New("transport failure")
	// ErrDecodeFailure wraps malformed payloads.
	ErrDecodeFailure = errors.New("decode failure")
	// ErrStaleCompletion is returned when a continuation resumes after its view is gone.
	ErrStaleCompletion = errors.New("stale completion")
	// ErrInvariantViolation rejects a descriptor that cannot be rendered by the called renderer.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrNoLocator is returned when a descriptor has no fetchable address.
	ErrNoLocator = errors.New("descriptor has no fetchable locator")
)
