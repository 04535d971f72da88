// Package fault defines the recoverable error taxonomy shared by the core
// stores. Every fault is local to the operation that raised it: it is
// reported to the originating connection and never tears down the process.
package fault

import (
	"errors"
	"fmt"
)

// Code classifies a recoverable operation failure
type Code string

const (
	CodeValidation Code = "validation"
	CodeNotFound   Code = "not_found"
	CodePermission Code = "permission"
	CodeCapacity   Code = "capacity"
)

// Error is a recoverable, caller-visible operation failure
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validationf creates a validation fault
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf creates a not-found fault
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Permissionf creates a permission fault
func Permissionf(format string, args ...interface{}) *Error {
	return &Error{Code: CodePermission, Message: fmt.Sprintf(format, args...)}
}

// Capacityf creates a capacity fault
func Capacityf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeCapacity, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the fault code from an error chain. The second return is
// false when the error is not a fault.
func CodeOf(err error) (Code, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code, true
	}
	return "", false
}

// Is reports whether err carries the given fault code
func Is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
