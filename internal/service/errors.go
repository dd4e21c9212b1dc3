package service

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrValidation marks malformed or disallowed input. Use validationError
	// to attach the client-facing message.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials deliberately does not say which check failed.
	ErrInvalidCredentials = errors.New("unable to login")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
)

// ValidationError carries a message safe to show to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func validationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// checkKeys rejects a patch containing keys outside allowed.
func checkKeys(patch map[string]any, allowed ...string) error {
	for key := range patch {
		if !slices.Contains(allowed, key) {
			return validationError("Attempt to update invalid fields")
		}
	}
	return nil
}
