// Package gudablas structured error types for better error handling
package gudablas

import (
	"errors"
	"fmt"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Stride or increment not positive
	ErrTypeInvalidStride ErrorType = iota
	// Operand extents disagree
	ErrTypeSizeMismatch
	// Device allocator could not satisfy a request
	ErrTypeOutOfDeviceMemory
	// Buffer released twice
	ErrTypeDoubleFree
	// Asynchronous fault raised while a launch executed
	ErrTypeBackendFault
	// Operation, scalar type or device combination not supported
	ErrTypeUnsupportedOperation
	// Any other rejected argument
	ErrTypeInvalidArgument
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Op      string // Operation that failed
	Message string // Human-readable message
	Err     error  // Underlying error if any
	Context any    // Additional context
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gudablas %s error in %s: %s (caused by: %v)",
			e.Type, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("gudablas %s error in %s: %s", e.Type, e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same type, so that
// errors.Is(err, ErrSizeMismatch) matches any size mismatch.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Type == e.Type
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeInvalidStride:
		return "InvalidStride"
	case ErrTypeSizeMismatch:
		return "SizeMismatch"
	case ErrTypeOutOfDeviceMemory:
		return "OutOfDeviceMemory"
	case ErrTypeDoubleFree:
		return "DoubleFree"
	case ErrTypeBackendFault:
		return "BackendFault"
	case ErrTypeUnsupportedOperation:
		return "UnsupportedOperation"
	case ErrTypeInvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// Common error constructors

// NewInvalidStrideError reports a non-positive stride or increment.
func NewInvalidStrideError(op string, stride int) error {
	return &Error{
		Type:    ErrTypeInvalidStride,
		Op:      op,
		Message: fmt.Sprintf("stride must be positive, got %d", stride),
		Context: stride,
	}
}

// NewSizeMismatchError reports operands whose extents disagree.
func NewSizeMismatchError(op string, want, got int) error {
	return &Error{
		Type:    ErrTypeSizeMismatch,
		Op:      op,
		Message: fmt.Sprintf("operand extent %d does not match %d", got, want),
		Context: [2]int{want, got},
	}
}

// NewOutOfDeviceMemoryError reports an allocation the pool cannot satisfy.
func NewOutOfDeviceMemoryError(op string, requested, available int64) error {
	return &Error{
		Type:    ErrTypeOutOfDeviceMemory,
		Op:      op,
		Message: fmt.Sprintf("requested %d bytes, %d available", requested, available),
		Context: requested,
	}
}

// NewBackendFaultError wraps a fault raised while a launch executed.
func NewBackendFaultError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeBackendFault,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewUnsupportedError reports a combination the capability traits reject.
func NewUnsupportedError(op string, message string) error {
	return &Error{
		Type:    ErrTypeUnsupportedOperation,
		Op:      op,
		Message: message,
	}
}

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &Error{
		Type:    ErrTypeInvalidArgument,
		Op:      op,
		Message: message,
	}
}

// Common pre-defined errors, usable as errors.Is targets.

var (
	ErrInvalidStride        = &Error{Type: ErrTypeInvalidStride, Op: "View", Message: "stride must be positive"}
	ErrSizeMismatch         = &Error{Type: ErrTypeSizeMismatch, Op: "Expr", Message: "operand extents disagree"}
	ErrOutOfDeviceMemory    = &Error{Type: ErrTypeOutOfDeviceMemory, Op: "Allocate", Message: "out of device memory"}
	ErrDoubleFree           = &Error{Type: ErrTypeDoubleFree, Op: "Deallocate", Message: "double free detected"}
	ErrBackendFault         = &Error{Type: ErrTypeBackendFault, Op: "Launch", Message: "kernel execution failed"}
	ErrUnsupportedOperation = &Error{Type: ErrTypeUnsupportedOperation, Op: "Tree", Message: "unsupported operation"}
	ErrInvalidArgument      = &Error{Type: ErrTypeInvalidArgument, Op: "Argument", Message: "invalid argument"}
)

func isType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsInvalidStrideError checks if an error is an invalid stride error
func IsInvalidStrideError(err error) bool { return isType(err, ErrTypeInvalidStride) }

// IsSizeMismatchError checks if an error is a size mismatch error
func IsSizeMismatchError(err error) bool { return isType(err, ErrTypeSizeMismatch) }

// IsOutOfDeviceMemoryError checks if an error is an out of memory error
func IsOutOfDeviceMemoryError(err error) bool { return isType(err, ErrTypeOutOfDeviceMemory) }

// IsDoubleFreeError checks if an error is a double free error
func IsDoubleFreeError(err error) bool { return isType(err, ErrTypeDoubleFree) }

// IsBackendFaultError checks if an error is a backend fault
func IsBackendFaultError(err error) bool { return isType(err, ErrTypeBackendFault) }

// IsUnsupportedError checks if an error is an unsupported operation error
func IsUnsupportedError(err error) bool { return isType(err, ErrTypeUnsupportedOperation) }

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool { return isType(err, ErrTypeInvalidArgument) }
