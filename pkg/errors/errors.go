package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an API error: a stable machine code, the HTTP status it maps to
// and a human message. The wrapped cause is never serialised.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Code, so errors.Is(Clone(ErrNotFound, "patient not found"),
// ErrNotFound) holds.
func (e *Error) Is(target error) bool {
	var t *Error
	if e == nil || !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap keeps err as the cause of a new API error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Generic errors.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Agenda errors.
var (
	// ErrInvalidRule rejects repeat-rule text that cannot be parsed.
	ErrInvalidRule = New("INVALID_RULE", http.StatusBadRequest, "invalid recurrence rule")
	// ErrNotRecurring is returned when a detach targets a series without a rule.
	ErrNotRecurring = New("NOT_RECURRING", http.StatusConflict, "appointment is not recurring")
	// ErrRecurringSeries is returned when a standalone-only operation targets a
	// recurring series; callers must detach the occurrence first.
	ErrRecurringSeries = New("RECURRING_SERIES", http.StatusNotFound, "appointment is a recurring series; detach the occurrence first")
	ErrAlreadyDetached = New("OCCURRENCE_ALREADY_DETACHED", http.StatusConflict, "occurrence already detached")
	ErrNoteExists      = New("NOTE_EXISTS", http.StatusConflict, "appointment already has a clinical note")
)

// FromError returns the *Error in err's chain, or ErrInternal wrapping err.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone copies err, replacing the message when one is given.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
