// Package errors provides structured error handling for cura
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeData represents data processing errors
	ErrorTypeData ErrorType = "data"
	// ErrorTypeStructural represents delimiter or column mismatches across input files.
	// Always fatal and raised before anything is appended to the store.
	ErrorTypeStructural ErrorType = "structural"
	// ErrorTypeIngestion represents parse or append failures while ingesting a file
	ErrorTypeIngestion ErrorType = "ingestion"
	// ErrorTypeRouting represents edits addressed to keys that cannot receive them
	ErrorTypeRouting ErrorType = "routing"
	// ErrorTypeMerge represents inspection results that dropped a known key
	ErrorTypeMerge ErrorType = "merge"
	// ErrorTypeExport represents format writer failures
	ErrorTypeExport ErrorType = "export"
	// ErrorTypeInterrupted represents a run stopped by the user
	ErrorTypeInterrupted ErrorType = "interrupted"
)

// Sentinel errors. Structured errors created with Sentinel match them through errors.Is.
var (
	ErrEmptyInput       = errors.New("input directory has no files")
	ErrInvalidStructure = errors.New("invalid input structure")
	ErrMissingColumns   = errors.New("missing whitelist columns")
	ErrKeySet           = errors.New("inspection result is missing keys")
	ErrUnknownTransform = errors.New("unknown transform")
	ErrInterrupted      = errors.New("run interrupted")
)

// Error represents a structured error with context
type Error struct {
	Type     ErrorType
	Message  string
	Cause    error
	Details  map[string]interface{}
	Stack    []StackFrame
	sentinel error
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel this error was created from
func (e *Error) Is(target error) bool {
	return e.sentinel != nil && e.sentinel == target
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Detail returns a detail value previously attached with WithDetail
func (e *Error) Detail(key string) (interface{}, bool) {
	v, ok := e.Details[key]
	return v, ok
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Sentinel creates a new error that matches sentinel through errors.Is
func Sentinel(sentinel error, errType ErrorType, message string) *Error {
	return &Error{
		Type:     errType,
		Message:  message,
		Stack:    captureStack(2),
		sentinel: sentinel,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsFatal reports whether err must stop the run. Routing problems are
// recoverable; everything else is fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsType(err, ErrorTypeRouting)
}

// Is is a passthrough to the standard library so callers need a single import
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a passthrough to the standard library
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
