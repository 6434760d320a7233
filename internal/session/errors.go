package session

import (
	"errors"
	"net/http"
)

// invalidRequestError is a client-caused failure detected before streaming.
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string   { return e.msg }
func (e invalidRequestError) StatusCode() int { return http.StatusBadRequest }

// ErrInvalidRequest constructs an invalidRequestError.
func ErrInvalidRequest(msg string) error { return invalidRequestError{msg: msg} }

// IsInvalidRequest reports whether err was caused by a bad request body.
func IsInvalidRequest(err error) bool {
	var e invalidRequestError
	return errors.As(err, &e)
}

// unavailableError signals that the generator refuses work (circuit open).
type unavailableError struct{ msg string }

func (e unavailableError) Error() string   { return e.msg }
func (e unavailableError) StatusCode() int { return http.StatusServiceUnavailable }

// IsUnavailable reports whether err means the generator refused new sessions.
func IsUnavailable(err error) bool {
	var e unavailableError
	return errors.As(err, &e)
}

// GenerationFailure wraps a worker-side fault. It is reported in-band.
type GenerationFailure struct{ Err error }

func (e GenerationFailure) Error() string { return "generation failed: " + e.Err.Error() }
func (e GenerationFailure) Unwrap() error { return e.Err }

// TransportFailure wraps a write/flush error or a lost client. It is only
// logged: the channel it would be reported on is gone.
type TransportFailure struct{ Err error }

func (e TransportFailure) Error() string { return "transport failure: " + e.Err.Error() }
func (e TransportFailure) Unwrap() error { return e.Err }

// IsTransportFailure reports whether err is a TransportFailure.
func IsTransportFailure(err error) bool {
	var e TransportFailure
	return errors.As(err, &e)
}
