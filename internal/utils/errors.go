package utils

import (
	"errors"
	"fmt"
)

var (
	// ErrRunNotFound is returned when a run id has no stored result.
	ErrRunNotFound = errors.New("run not found")
	// ErrNoAdvisor is returned when advisory enrichment is requested but not configured.
	ErrNoAdvisor = errors.New("advisor not configured")
	// ErrNotConfigured is returned when an operation needs a collaborator that was not wired.
	ErrNotConfigured = errors.New("not configured")
	// ErrInvalidRequest marks caller input the service refuses to process.
	ErrInvalidRequest = errors.New("invalid request")
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// InvalidRequest builds an AppError wrapping ErrInvalidRequest.
func InvalidRequest(op, msg string) error {
	return &AppError{Op: op, Msg: msg, Err: ErrInvalidRequest}
}
