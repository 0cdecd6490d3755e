package services

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the services. Handlers map these to HTTP statuses;
// everything else is treated as a transient store failure.
var (
	ErrNotFound     = errors.New("not found")
	ErrThreadLocked = errors.New("thread is locked")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrStoreFailure = errors.New("store unavailable")

	// Specialisations of ErrNotFound so callers can tell which reference in
	// a reply submission was dangling.
	ErrThreadNotFound = fmt.Errorf("thread: %w", ErrNotFound)
	ErrParentNotFound = fmt.Errorf("parent reply: %w", ErrNotFound)
)

// ValidationError carries field-level detail back to the client.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
