// Package apperr holds the sentinel errors shared by the data and service
// layers. Handlers match them with errors.Is and pick the response status.
package apperr

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrSessionNotFound = errors.New("opd session not found")
	ErrChannelNotFound = errors.New("channel not found")
	ErrRecordNotFound  = errors.New("record not found")
	ErrRecordExists    = errors.New("record already exists")

	ErrSessionFull          = errors.New("opd session is full")
	ErrSessionNotStarted    = errors.New("opd session has not started")
	ErrSessionAlreadyOpen   = errors.New("doctor already has an open opd session")
	ErrSessionHasTickets    = errors.New("opd session already issued tickets")
	ErrMultipleOpenSessions = errors.New("more than one open opd session")
	ErrAlreadyBooked        = errors.New("patient already booked")
	ErrNoPatients           = errors.New("no patients available")
	ErrNoSlots              = errors.New("no slots available")
	ErrIssueInProgress      = errors.New("ticket request already in progress")
)

// Invalid wraps ErrInvalidInput with a message safe to show to clients.
func Invalid(message string) error {
	return &ValidationError{Message: message}
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// ValidationMessage returns the client message of a validation error, or
// fallback when err carries none.
func ValidationMessage(err error, fallback string) string {
	var v *ValidationError
	if errors.As(err, &v) && v.Message != "" {
		return v.Message
	}
	return fallback
}
