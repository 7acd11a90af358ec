package confecalc

import (
	"errors"
	"fmt"
)

// ErrorType classifies an Error.
type ErrorType int

const (
	ErrTypeMemory     ErrorType = iota // allocation, free and shared memory carving
	ErrTypeInvalidArg                  // bad launch configuration or argument
	ErrTypeExecution                   // a kernel thread failed
	ErrTypeNumerical                   // a value outside its valid domain
	ErrTypeDevice                      // device selection
	ErrTypeFormat                      // malformed encoded data
)

var errorTypeNames = [...]string{
	ErrTypeMemory:     "Memory",
	ErrTypeInvalidArg: "InvalidArgument",
	ErrTypeExecution:  "Execution",
	ErrTypeNumerical:  "Numerical",
	ErrTypeDevice:     "Device",
	ErrTypeFormat:     "Format",
}

func (t ErrorType) String() string {
	if t >= 0 && int(t) < len(errorTypeNames) {
		return errorTypeNames[t]
	}
	return "Unknown"
}

// Error is the error type returned throughout confecalc. Op names the
// failing operation; Err, when set, is the underlying cause.
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Err     error
	Context interface{} // optional detail, e.g. the offending index
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("confecalc %v error in %s: %s", e.Type, e.Op, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(t ErrorType, op, message string, err error) error {
	return &Error{Type: t, Op: op, Message: message, Err: err}
}

// NewMemoryError reports a failed allocation, free or carve.
func NewMemoryError(op string, message string, err error) error {
	return newError(ErrTypeMemory, op, message, err)
}

// NewInvalidArgError reports an argument the operation cannot accept.
func NewInvalidArgError(op string, message string) error {
	return newError(ErrTypeInvalidArg, op, message, nil)
}

// NewExecutionError reports a kernel failure.
func NewExecutionError(op string, message string, err error) error {
	return newError(ErrTypeExecution, op, message, err)
}

// NewNumericalError reports a value outside its valid domain; context
// carries whatever identifies it.
func NewNumericalError(op string, message string, context interface{}) error {
	return &Error{Type: ErrTypeNumerical, Op: op, Message: message, Context: context}
}

// NewFormatError reports malformed encoded input.
func NewFormatError(op string, message string, err error) error {
	return newError(ErrTypeFormat, op, message, err)
}

var (
	ErrInvalidSize           = NewInvalidArgError("Malloc", "size must be positive")
	ErrDoubleFree            = NewMemoryError("Free", "double free detected", nil)
	ErrInvalidDevice         = newError(ErrTypeDevice, "SetDevice", "invalid device ID", nil)
	ErrSharedMemoryExhausted = NewMemoryError("SharedMemory", "shared memory exhausted", nil)
)

func isType(err error, t ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}

// IsMemoryError reports whether err, or an error it wraps, is a memory error.
func IsMemoryError(err error) bool { return isType(err, ErrTypeMemory) }

// IsInvalidArgError reports whether err, or an error it wraps, is an invalid argument error.
func IsInvalidArgError(err error) bool { return isType(err, ErrTypeInvalidArg) }

// IsExecutionError reports whether err, or an error it wraps, is an execution error.
func IsExecutionError(err error) bool { return isType(err, ErrTypeExecution) }

// IsDeviceError reports whether err, or an error it wraps, names a device that does not exist.
func IsDeviceError(err error) bool { return isType(err, ErrTypeDevice) }

// IsFormatError reports whether err, or an error it wraps, is a format error.
func IsFormatError(err error) bool { return isType(err, ErrTypeFormat) }
