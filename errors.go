// Package gudavol structured error types
package gudavol

import (
	"errors"
	"fmt"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Memory errors (allocation, free, copies)
	ErrTypeMemory ErrorType = iota
	// Invalid argument errors
	ErrTypeInvalidArg
	// Execution errors (kernel faults)
	ErrTypeExecution
	// Device errors
	ErrTypeDevice
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Op      string      // Operation that failed
	Message string      // Human-readable message
	Err     error       // Underlying error if any
	Context interface{} // Additional context
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gudavol %s error in %s: %s (caused by: %v)",
			e.Type, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("gudavol %s error in %s: %s", e.Type, e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeMemory:
		return "Memory"
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	case ErrTypeExecution:
		return "Execution"
	case ErrTypeDevice:
		return "Device"
	default:
		return "Unknown"
	}
}

// Common error constructors

// NewMemoryError creates a memory-related error
func NewMemoryError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeMemory,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &Error{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: message,
	}
}

// NewExecutionError creates an execution error
func NewExecutionError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeExecution,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewDeviceError creates a device error
func NewDeviceError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeDevice,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// wrapInvalidArg reports a precondition failure that already carries a
// sentinel, keeping the sentinel reachable through errors.Is.
func wrapInvalidArg(op string, sentinel error, detail string) error {
	return &Error{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: detail,
		Err:     sentinel,
	}
}

// Common pre-defined errors

var (
	// ErrOutOfMemory indicates memory allocation failure
	ErrOutOfMemory = NewMemoryError("Malloc", "out of memory", nil)

	// ErrInvalidSize indicates invalid size parameter
	ErrInvalidSize = NewInvalidArgError("Malloc", "size must be positive")

	// ErrNullPointer indicates null pointer access
	ErrNullPointer = NewInvalidArgError("Memory", "null pointer")

	// ErrDoubleFree indicates double free attempt
	ErrDoubleFree = NewMemoryError("Free", "double free detected", nil)

	// ErrInvalidDevice indicates invalid device ID
	ErrInvalidDevice = NewInvalidArgError("SetDevice", "invalid device ID")

	// ErrKernelFailed indicates a kernel faulted while running
	ErrKernelFailed = NewExecutionError("Kernel", "kernel execution failed", nil)

	// ErrEmptyVolume indicates a volume with zero voxels
	ErrEmptyVolume = NewInvalidArgError("Volume", "volume has no voxels")

	// ErrVolumeFreed indicates use of a device volume after Free
	ErrVolumeFreed = NewInvalidArgError("DeviceVolume", "device volume already freed")

	// ErrInvalidBlockShape indicates a block shape outside 1..MaxThreadsPerBlock
	ErrInvalidBlockShape = NewInvalidArgError("BlockShape", "invalid block shape")

	// ErrInvalidLayout indicates an unknown device layout
	ErrInvalidLayout = NewInvalidArgError("Layout", "unknown layout")

	// ErrContextDestroyed indicates use of a destroyed context
	ErrContextDestroyed = NewDeviceError("Context", "context destroyed", nil)
)

// IsMemoryError checks if an error is a memory error
func IsMemoryError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == ErrTypeMemory
}

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == ErrTypeInvalidArg
}

// IsExecutionError checks if an error is a kernel execution error
func IsExecutionError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == ErrTypeExecution
}

// IsDeviceError reports whether err came from the device side: failed
// allocations, failed copies, failed launches or faulted kernels.
func IsDeviceError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Type {
	case ErrTypeDevice, ErrTypeMemory, ErrTypeExecution:
		return true
	}
	return false
}
