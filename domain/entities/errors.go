package entities

import (
	"errors"
	"fmt"
)

// Sentinel errors for session operations.
var (
	// ErrSessionNotFound is returned when the session id is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnauthorized is returned when the caller's token does not match the
	// session's recorded token and neither is the configured bypass value.
	ErrUnauthorized = errors.New("not authorized for this session")

	// ErrInvalidState is returned when an operation is attempted in a session
	// state that does not allow it.
	ErrInvalidState = errors.New("operation not allowed in current session state")

	// ErrNoCredential is returned when no vendor credential is mapped for the
	// requested avatar.
	ErrNoCredential = errors.New("no vendor credential mapped for avatar")
)

// VendorError represents a failed call to the avatar or speech vendor. It
// carries the vendor's HTTP status and application code so callers can
// explain the failure without re-querying the vendor.
type VendorError struct {
	// Vendor identifies which external service returned the error.
	Vendor string

	// StatusCode is the HTTP status of the response, 0 for transport errors.
	StatusCode int

	// Code is the vendor's application-level result code, if any.
	Code int

	// Message is the vendor's error message.
	Message string
}

// Error implements the error interface.
func (e *VendorError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: vendor error %d (code=%d): %s", e.Vendor, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: vendor error %d: %s", e.Vendor, e.StatusCode, e.Message)
}
