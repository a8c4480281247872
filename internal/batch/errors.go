package batch

import (
	"errors"
	"fmt"
)

var (
	// ErrPanic wraps a value recovered from a panicking issuer step.
	ErrPanic = errors.New("issuer panicked")

	// ErrNoEmitter is returned by IssuerFuncs without an Emit function.
	ErrNoEmitter = errors.New("no emit function configured")
)

// FaultKind identifies the step in which an item fault happened.
type FaultKind int

const (
	FaultNavigate FaultKind = iota
	FaultEmit
	FaultPanic
)

// String returns the string representation of FaultKind
func (k FaultKind) String() string {
	switch k {
	case FaultNavigate:
		return "NAVIGATE"
	case FaultEmit:
		return "EMIT"
	case FaultPanic:
		return "PANIC"
	default:
		return "UNKNOWN"
	}
}

// ItemError is an item fault: the issuer signalled an error or panicked
// instead of reporting an outcome.
type ItemError struct {
	Identifier Identifier
	Index      int
	Kind       FaultKind
	Cause      error
}

// Error implements the error interface
func (e *ItemError) Error() string {
	return fmt.Sprintf("[%s] item %d (%s): %v", e.Kind, e.Index, e.Identifier, e.Cause)
}

// Unwrap returns the underlying cause error
func (e *ItemError) Unwrap() error {
	return e.Cause
}

// IsFault reports whether err is, or wraps, an *ItemError.
func IsFault(err error) bool {
	var itemErr *ItemError
	return errors.As(err, &itemErr)
}

func panicError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, recovered)
}
