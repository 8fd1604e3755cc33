package errors

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInvalidArgument Code = "invalid"
	CodeTimeout         Code = "timeout"
	CodeUnavailable     Code = "unavailable"
	CodeInternal        Code = "internal"
)

// Coder is implemented by errors that carry their own code without
// being a *Status.
type Coder interface {
	ErrorCode() Code
}

type Status struct {
	// Source error
	Err error `json:"source_error,omitempty"`

	// Machine-readable status code.
	Code Code `json:"code"`

	// Human-readable error message.
	Message string `json:"message"`
}

// Unwrap status error and return source error.
func (e *Status) Unwrap() error {
	return e.Err
}

// Source sets the origin err and return error.
func (e *Status) Source(err error) *Status {
	e.Err = err
	return e
}

// Error implements the error interface.
func (e *Status) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err)
	}
	return e.Message
}

// ErrorCode implements Coder.
func (e *Status) ErrorCode() Code {
	return e.Code
}

// AsCode unwraps an error and returns its code.
// Errors without a code always return CodeInternal.
func AsCode(err error) Code {
	if err == nil {
		return ""
	}
	if e := AsStatus(err); e != nil {
		return e.Code
	}
	var c Coder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return CodeInternal
}

// AsStatus return err as Status error.
func AsStatus(err error) (e *Status) {
	if err == nil {
		return nil
	}
	if errors.As(err, &e) {
		return
	}
	return
}

// Format is a helper function to return an Error with a given status and formatted message.
func Format(code Code, format string, args ...any) *Status {
	return &Status{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// InvalidArgument is a helper function to return an invalid argument Error.
func InvalidArgument(format string, args ...any) *Status {
	return Format(CodeInvalidArgument, format, args...)
}

// Unavailable reports a backend that cannot be reached.
func Unavailable(format string, args ...any) *Status {
	return Format(CodeUnavailable, format, args...)
}

// IsInvalidArgument checks if err is invalid argument error.
func IsInvalidArgument(err error) bool {
	return AsCode(err) == CodeInvalidArgument
}

// IsUnavailable checks if err is unavailable error.
func IsUnavailable(err error) bool {
	return AsCode(err) == CodeUnavailable
}
