// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a location does not exist in the repository.
	ErrNotFound = errors.New("location not found")
	// ErrNotNavigable is returned when children are requested for a terminal location.
	ErrNotNavigable = errors.New("location is not navigable")
	// ErrIsNavigable is returned when a navigable location is opened for reading.
	ErrIsNavigable = errors.New("location is navigable")
	// ErrIOFailure is the sentinel error wrapped by IOFailureError.
	ErrIOFailure = errors.New("repository I/O failure")
	// ErrReleased is returned by any operation on a repository after Close.
	ErrReleased = errors.New("repository released")
)

type (
	// LookupError reports a location that cannot exist or cannot be used the
	// way it was asked to be. It wraps one of ErrNotFound, ErrNotNavigable or
	// ErrIsNavigable. Resolvers treat lookup errors as "no match here".
	LookupError struct {
		Location string
		Err      error
	}

	// IOFailureError reports a backend failure (unreadable archive, corrupt
	// central directory, permission denied). It wraps ErrIOFailure and the
	// underlying cause for errors.Is() compatibility.
	IOFailureError struct {
		// Op is the operation that failed (e.g., "list", "open", "index").
		Op string
		// Location is the backend-native location involved (optional).
		Location string
		// Cause is the underlying error.
		Cause error
	}
)

// NotFound returns a LookupError wrapping ErrNotFound.
func NotFound(location string) error {
	return &LookupError{Location: location, Err: ErrNotFound}
}

// NotNavigable returns a LookupError wrapping ErrNotNavigable.
func NotNavigable(location string) error {
	return &LookupError{Location: location, Err: ErrNotNavigable}
}

// IsNavigable returns a LookupError wrapping ErrIsNavigable.
func IsNavigable(location string) error {
	return &LookupError{Location: location, Err: ErrIsNavigable}
}

// IOFailure wraps cause as an IOFailureError. A nil cause yields nil.
func IOFailure(op, location string, cause error) error {
	if cause == nil {
		return nil
	}
	return &IOFailureError{Op: op, Location: location, Cause: cause}
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Location, e.Err)
}

// Unwrap returns the lookup sentinel.
func (e *LookupError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *IOFailureError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Location, e.Cause)
}

// Unwrap returns both ErrIOFailure and the cause.
func (e *IOFailureError) Unwrap() []error { return []error{ErrIOFailure, e.Cause} }

// IsLookupError reports whether err means the location simply does not
// match (missing, terminal where a directory was needed, or vice versa).
func IsLookupError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotNavigable) || errors.Is(err, ErrIsNavigable)
}
