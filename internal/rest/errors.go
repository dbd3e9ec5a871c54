package rest

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError wraps a transport-level failure: no response was received
// (DNS, connect, timeout). These are retryable and must never destroy
// cached state upstream.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a 4xx/5xx response. Detail carries the human-readable
// message parsed from the body when the backend provided one.
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server error %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("server error %d", e.Status)
}

// Unauthorized reports whether the error is a 401. The client only
// propagates these; session teardown belongs to whoever owns the token.
func (e *ServerError) Unauthorized() bool { return e.Status == http.StatusUnauthorized }

// ValidationError rejects a request before any network call is made.
// Never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// Retryable reports whether err is worth retrying: network failures and
// 5xx responses. Validation errors and 4xx responses are not.
func Retryable(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var se *ServerError
	if errors.As(err, &se) {
		return se.Status >= 500
	}
	return false
}

// UserMessage extracts a message suitable for direct display. Server
// errors surface their body detail verbatim when present; everything else
// falls back to a generic line.
func UserMessage(err error) string {
	var se *ServerError
	if errors.As(err, &se) && se.Detail != "" {
		return se.Detail
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return "Something went wrong. Please try again."
}
