// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a request that failed validation (blank query, bad id).
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyExists indicates a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates an operation that needs a logged-in user.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an admin-only operation attempted by a non-admin.
	ErrForbidden = errors.New("forbidden")
)

// RemoteError is a recoverable failure of the remote catalog service.
// Status is zero when the request never produced an HTTP response.
type RemoteError struct {
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("API Error: %d %s", e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("remote: %s: %v", e.Message, e.Err)
	default:
		return "remote: " + e.Message
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }
