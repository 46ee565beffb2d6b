// Package errors provides the domain error types shared by the recap packages.
//
// Extraction misses are never errors: a strategy that finds nothing simply
// contributes zero entries. Only faults that make an operation impossible
// cross package boundaries, and those are reported with the sentinels below
// so callers can branch with errors.Is.
//
// Usage:
//
//	import rcerrors "github.com/otherjamesbrown/recap-cli/pkg/errors"
//
//	return nil, fmt.Errorf("cell container: %w", rcerrors.ErrStructural)
//
//	if rcerrors.IsTransport(err) {
//	    // the frame agent never answered
//	}
package errors

import "errors"

// Domain errors.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrStructural indicates that something an operation cannot do without
	// is absent: a mandatory container, or the cross-context channel.
	ErrStructural = errors.New("structural fault")

	// ErrTransport indicates that a message between execution contexts was
	// not delivered or not answered in time.
	ErrTransport = errors.New("transport fault")

	// ErrUnknownOperation indicates a request named an operation outside the
	// fixed handler set.
	ErrUnknownOperation = errors.New("unknown operation")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsStructural reports whether any error in err's chain is ErrStructural.
func IsStructural(err error) bool {
	return errors.Is(err, ErrStructural)
}

// IsTransport reports whether any error in err's chain is ErrTransport.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsUnknownOperation reports whether any error in err's chain is ErrUnknownOperation.
func IsUnknownOperation(err error) bool {
	return errors.Is(err, ErrUnknownOperation)
}
