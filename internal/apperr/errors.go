package apperr

import (
	"errors"
	"fmt"
)

// Exit codes returned by the command line for each error class
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitValidation = 2
	ExitNotFound   = 3
	ExitConflict   = 4
	ExitTimeout    = 5
)

/**
 * ValidationError reports bad user input
 * @property {string} Field - Offending field or parameter, may be empty
 * @property {string} Message - Human readable reason, printed as is
 */
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidation(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	Name     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Resource, e.Name)
}

func NewNotFound(resource, name string) *NotFoundError {
	return &NotFoundError{Resource: resource, Name: name}
}

// ConflictError reports an operation rejected by the current state.
type ConflictError struct {
	Message string
	Cause   error
}

func (e *ConflictError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ConflictError) Unwrap() error {
	return e.Cause
}

func NewConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// TimeoutError reports an operation that exceeded its bound.
type TimeoutError struct {
	Operation string
	Timeout   string
	Cause     error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s timed out after %s", e.Operation, e.Timeout)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// AmbiguousRequestError is returned when a command lacks the target it needs.
type AmbiguousRequestError struct {
	Message string
}

func (e *AmbiguousRequestError) Error() string {
	return e.Message
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

/**
 * Map an error onto a process exit code
 * @param {error} err - Error returned by a command, nil for success
 * @returns {int} Exit code
 */
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		ve *ValidationError
		ae *AmbiguousRequestError
		nf *NotFoundError
		ce *ConflictError
		te *TimeoutError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ae):
		return ExitValidation
	case errors.As(err, &nf):
		return ExitNotFound
	case errors.As(err, &ce):
		return ExitConflict
	case errors.As(err, &te):
		return ExitTimeout
	default:
		return ExitFailure
	}
}
