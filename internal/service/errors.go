// Package service orchestrates the reservation core: it authorizes guest and
// host actions, runs them against the repository, and publishes one
// notification per committed change.
package service

import (
	"errors"
	"fmt"
)

// ErrForbidden is returned when the actor may not perform the operation.
var ErrForbidden = errors.New("forbidden")

// ValidationError reports bad caller input.  No store call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
