package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeParsing        ErrorType = "PARSING"
	ErrTypeValidation     ErrorType = "VALIDATION"
	ErrTypeNotFound       ErrorType = "NOT_FOUND"
	ErrTypeConfig         ErrorType = "CONFIG"
	ErrTypeInvalidRange   ErrorType = "INVALID_RANGE"
	ErrTypeLengthMismatch ErrorType = "LENGTH_MISMATCH"
	ErrTypeAnalysis       ErrorType = "ANALYSIS"
	ErrTypeStorage        ErrorType = "STORAGE"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether err carries an AppError of the given type anywhere in its chain.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewInvalidRangeError reports an empty or inverted frame window.
func NewInvalidRangeError(start, end int) *AppError {
	return NewAppError(ErrTypeInvalidRange,
		fmt.Sprintf("invalid frame range: start index %d is not before end index %d", start, end), nil).
		WithContext("start_idx", start).
		WithContext("end_idx", end)
}

// NewLengthMismatchError reports x/y series of different lengths.
func NewLengthMismatchError(xLen, yLen int) *AppError {
	return NewAppError(ErrTypeLengthMismatch,
		fmt.Sprintf("x and y must have the same length (x=%d, y=%d)", xLen, yLen), nil).
		WithContext("x_len", xLen).
		WithContext("y_len", yLen)
}

// NewAnalysisError wraps a failure inside an analysis stage.
func NewAnalysisError(stage string, cause error) *AppError {
	return NewAppError(ErrTypeAnalysis, fmt.Sprintf("%s failed", stage), cause).
		WithContext("stage", stage)
}
