// Package errors provides a lightweight structured error type (RocketError)
// for category-based classification across the compiler, the project driver
// and the CLI.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of a Rocket error for classification
type ErrorCategory string

const (
	// Document compilation errors
	CategoryDirective  ErrorCategory = "directive"
	CategoryArity      ErrorCategory = "arity"
	CategoryValidation ErrorCategory = "validation"
	CategoryParse      ErrorCategory = "parse"
	CategoryVariable   ErrorCategory = "variable"
	CategoryReference  ErrorCategory = "reference"

	// Project and output errors
	CategoryConfig     ErrorCategory = "config"
	CategoryRender     ErrorCategory = "render"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Runtime and infrastructure errors
	CategoryNetwork  ErrorCategory = "network"
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// RocketError is a structured error with category, retryability, and context
type RocketError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for RocketError
type ContextFields map[string]any

// Error implements the error interface
func (e *RocketError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *RocketError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *RocketError) WithContext(key string, value any) *RocketError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new RocketError
func New(category ErrorCategory, severity ErrorSeverity, message string) *RocketError {
	return &RocketError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: false,
	}
}

// Wrap creates a new RocketError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *RocketError {
	return &RocketError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// WrapRetryable creates a new retryable RocketError that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *RocketError {
	return &RocketError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if re, ok := err.(*RocketError); ok {
		return re.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if re, ok := err.(*RocketError); ok {
		return re.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal
// if not a RocketError
func GetCategory(err error) ErrorCategory {
	if re, ok := err.(*RocketError); ok {
		return re.Category
	}
	return CategoryInternal
}

// Retryable creates a new retryable RocketError
func Retryable(category ErrorCategory, severity ErrorSeverity, message string) *RocketError {
	return &RocketError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: true,
	}
}
