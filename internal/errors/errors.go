package errors

import (
	stderrors "errors"
)

type ErrorType string

const (
	ErrorTypeUser     ErrorType = "USER"
	ErrorTypeNotFound ErrorType = "NOT_FOUND"
	ErrorTypeStorage  ErrorType = "STORAGE"
)

// Exit codes reported by the command line.
const (
	CodeUser    = 1
	CodeStorage = 2
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details any       `json:"details,omitempty"`
	Wrapped error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return e.Message + ": " + e.Wrapped.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is matches another *Error of the same type and message, so callers can
// compare against the sentinel values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

func UserError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeUser,
		Message: message,
		Code:    CodeUser,
		Details: details,
	}
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    CodeUser,
	}
}

func StorageError(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeStorage,
		Message: message,
		Code:    CodeStorage,
		Wrapped: err,
	}
}

// IsType reports whether err or anything it wraps is an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// ExitCode maps err to a process exit status. Unclassified errors are
// treated as storage failures.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeStorage
}

// Details returns the details attached to the first *Error in err's chain.
func Details(err error) any {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Details
	}
	return nil
}
