package domain

import (
	"errors"
	"fmt"
)

// Precondition failures are caught before any backend call is made.
var (
	ErrNotAuthenticated = errors.New("you need to log in first")
	ErrEmptyTitle       = errors.New("title is required")
	ErrEmptyText        = errors.New("text is required")
	ErrMissingTarget    = errors.New("choose a list first")
	ErrMissingComment   = errors.New("choose a comment to reply to")
	ErrDescriptionLong  = errors.New("description must be at most 500 characters")
	ErrEmptyName        = errors.New("name is required")
	ErrInvalidEmail     = errors.New("email address is not valid")
	ErrBioLong          = errors.New("bio must be at most 500 characters")
)

// ErrInFlight is returned when an interaction is invoked while the same
// interaction on the same entity is still waiting for the backend.
var ErrInFlight = errors.New("interaction already in flight")

// ErrSuperseded is returned to a fetch whose result was discarded because a
// newer request for the same slot was issued.
var ErrSuperseded = errors.New("superseded by a newer request")

// FallbackMessage is shown when no backend message is available.
const FallbackMessage = "An unexpected error occurred"

// TransportError is a failure to reach the backend or to read its response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectedError is an application-level rejection: the backend answered with
// success=false or a non-2xx status.
type RejectedError struct {
	Op      string
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: rejected (status %d)", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: rejected (status %d): %s", e.Op, e.Status, e.Message)
}

// IsPrecondition reports whether err is a client-side precondition failure.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrEmptyTitle) ||
		errors.Is(err, ErrEmptyText) ||
		errors.Is(err, ErrMissingTarget) ||
		errors.Is(err, ErrMissingComment) ||
		errors.Is(err, ErrDescriptionLong) ||
		errors.Is(err, ErrEmptyName) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrBioLong)
}

// UserMessage converts err into the single message shown to the viewer.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) && rejected.Message != "" {
		return rejected.Message
	}
	for _, sentinel := range []error{ErrNotAuthenticated, ErrEmptyTitle, ErrEmptyText, ErrMissingTarget, ErrMissingComment, ErrDescriptionLong, ErrEmptyName, ErrInvalidEmail, ErrBioLong} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return FallbackMessage
}
