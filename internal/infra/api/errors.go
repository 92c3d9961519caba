package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the single error shape surfaced by the client. Status is the
// HTTP status of a rejected call, or zero when the request never produced
// a response (transport failure).
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("api: %s: %d %s", e.Op, e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransport reports a network-level failure: no response arrived at all.
func IsTransport(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == 0
}

// IsAuth reports the server rejected the credential. Terminal for a session.
func IsAuth(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

// IsNotFound reports the resource is gone or inaccessible.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsBusiness reports an expected, recoverable business-rule rejection,
// such as confirming one's own initiation or duplicate feedback.
func IsBusiness(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}
