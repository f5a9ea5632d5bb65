package texreg

import (
	"errors"
	"fmt"
)

// Registration errors. Register returns them wrapped in a *RegistrationError;
// test with errors.Is.
var (
	// ErrUnsupportedType is returned when the descriptor's kind is not handled.
	ErrUnsupportedType = errors.New("texreg: unsupported texture type")

	// ErrInvalidCallback is returned when the descriptor has no content function.
	ErrInvalidCallback = errors.New("texreg: invalid pixel buffer callback")

	// ErrBackendUnavailable is returned when the storage backend is missing or
	// its entry points failed to resolve. Unlike the errors above it reflects
	// the environment, not the caller; registration may succeed later.
	ErrBackendUnavailable = errors.New("texreg: texture backend unavailable")
)

var (
	// ErrUnknownID is returned by lookups of an id that is not registered.
	ErrUnknownID = errors.New("texreg: unknown texture id")

	// ErrClosed is returned when the registrar has been closed.
	ErrClosed = errors.New("texreg: registrar closed")

	// ErrNilScheduler is returned by New when no scheduler is supplied.
	ErrNilScheduler = errors.New("texreg: nil scheduler")
)

// RegistrationError describes a rejected Register call.
type RegistrationError struct {
	Label string
	Kind  TextureKind
	Err   error
}

func (e *RegistrationError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("%v (kind=%v)", e.Err, e.Kind)
	}
	return fmt.Sprintf("%v (kind=%v, label=%q)", e.Err, e.Kind, e.Label)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}
