// Package errors provides structured error types for nebula.
// All errors include a category, code, message, and retryable flag so the
// CLI, the registry server and the sync engine report failures the same way.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryRemote     ErrorCategory = "REMOTE"
	ErrCategoryQuery      ErrorCategory = "QUERY"
	ErrCategorySync       ErrorCategory = "SYNC"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidDescriptor    = "INVALID_DESCRIPTOR"
	CodeMissingName          = "MISSING_NAME"
	CodeMissingVersion       = "MISSING_VERSION"
	CodeMissingID            = "MISSING_ID"
	CodeMalformedID          = "MALFORMED_ID"
	CodeInvalidPathComponent = "INVALID_PATH_COMPONENT"

	// Storage codes
	CodeReadFailed         = "READ_FAILED"
	CodeWriteFailed        = "WRITE_FAILED"
	CodeDeleteFailed       = "DELETE_FAILED"
	CodeObjectNotFound     = "OBJECT_NOT_FOUND"
	CodePreconditionFailed = "PRECONDITION_FAILED"
	CodeReadOnly           = "READ_ONLY"

	// Remote codes
	CodeUnavailable = "UNAVAILABLE"
	CodeTimeout     = "TIMEOUT"
	CodeNotFound    = "NOT_FOUND"
	CodeBadResponse = "BAD_RESPONSE"

	// Query codes
	CodeUnimplemented   = "UNIMPLEMENTED"
	CodeInvalidArgument = "INVALID_ARGUMENT"

	// Sync codes
	CodeListFailed = "LIST_FAILED"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// NebulaError is the structured error type used throughout the system.
type NebulaError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *NebulaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *NebulaError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *NebulaError) Is(target error) bool {
	var t *NebulaError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new NebulaError.
func New(category ErrorCategory, code, message string) *NebulaError {
	return &NebulaError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new NebulaError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *NebulaError {
	return &NebulaError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *NebulaError) WithDetails(details map[string]interface{}) *NebulaError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ne *NebulaError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a NebulaError.
func GetCategory(err error) ErrorCategory {
	var ne *NebulaError
	if errors.As(err, &ne) {
		return ne.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a NebulaError.
func GetCode(err error) string {
	var ne *NebulaError
	if errors.As(err, &ne) {
		return ne.Code
	}
	return ""
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryRemote && code == CodeUnavailable:
		return true
	case category == ErrCategoryRemote && code == CodeTimeout:
		return true
	case category == ErrCategoryStorage && code == CodeWriteFailed:
		return true
	case category == ErrCategorySync && code == CodeListFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string, cause error) *NebulaError {
	return Wrap(ErrCategoryValidation, code, message, cause)
}

func NewStorageError(code, message string, cause error) *NebulaError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewRemoteError(code, message string, cause error) *NebulaError {
	return Wrap(ErrCategoryRemote, code, message, cause)
}

func NewQueryError(code, message string) *NebulaError {
	return New(ErrCategoryQuery, code, message)
}

func NewSyncError(code, message string, cause error) *NebulaError {
	return Wrap(ErrCategorySync, code, message, cause)
}

func NewConfigError(message string, cause error) *NebulaError {
	return Wrap(ErrCategoryConfig, CodeInvalidConfig, message, cause)
}

func NewInternalError(message string, cause error) *NebulaError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
