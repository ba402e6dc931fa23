package core

import (
	"errors"
	"fmt"
)

// Stable machine-readable error codes. Routers map these to HTTP
// statuses; use-case code never imports net/http.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeForbidden    = "FORBIDDEN"
	CodeValidation   = "VALIDATION"
	CodeConflict     = "CONFLICT"
	CodeState        = "STATE"
	CodePrecondition = "PRECONDITION"
	CodeDependency   = "DEPENDENCY"
	CodeInternal     = "INTERNAL"
)

// Error wraps a cause with a stable code and optional structured details.
type Error struct {
	Err     error
	Code    string
	Details map[string]any
}

// NewError builds a coded error. Details may be nil.
func NewError(err error, code string, details map[string]any) *Error {
	return &Error{Err: err, Code: code, Details: details}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// DetailsOf extracts structured details from err, or nil.
func DetailsOf(err error) map[string]any {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Details
	}
	return nil
}

// NotFoundf is shorthand for a CodeNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return NewError(fmt.Errorf(format, args...), CodeNotFound, nil)
}

// Forbiddenf is shorthand for a CodeForbidden error.
func Forbiddenf(format string, args ...any) *Error {
	return NewError(fmt.Errorf(format, args...), CodeForbidden, nil)
}

// Validationf is shorthand for a CodeValidation error.
func Validationf(format string, args ...any) *Error {
	return NewError(fmt.Errorf(format, args...), CodeValidation, nil)
}

// Conflictf is shorthand for a CodeConflict error.
func Conflictf(format string, args ...any) *Error {
	return NewError(fmt.Errorf(format, args...), CodeConflict, nil)
}

// Statef is shorthand for a CodeState error.
func Statef(format string, args ...any) *Error {
	return NewError(fmt.Errorf(format, args...), CodeState, nil)
}
