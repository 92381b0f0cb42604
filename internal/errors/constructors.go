package errors

import "fmt"

// Convenience functions for common error patterns

// Document compilation errors

// UnknownDirective reports a name that resolves to neither a registered
// directive nor a context variable.
func UnknownDirective(name string) *RocketError {
	return New(CategoryDirective, SeverityError, fmt.Sprintf("unknown directive %q", name)).
		WithContext("directive", name)
}

// Arity reports a directive invoked with the wrong argument count or shape.
func Arity(directive, message string) *RocketError {
	return New(CategoryArity, SeverityError, fmt.Sprintf("%s: %s", directive, message)).
		WithContext("directive", directive)
}

// Validation reports a directive argument that fails semantic checks.
func Validation(directive, message string) *RocketError {
	return New(CategoryValidation, SeverityWarning, fmt.Sprintf("%s: %s", directive, message)).
		WithContext("directive", directive)
}

// Parse reports a syntax error at a source position.
func Parse(line, column int, message string) *RocketError {
	return New(CategoryParse, SeverityError, fmt.Sprintf("%d:%d: %s", line, column, message)).
		WithContext("line", line).
		WithContext("column", column)
}

// UndefinedVariable reports a context lookup miss.
func UndefinedVariable(name string) *RocketError {
	return New(CategoryVariable, SeverityError, fmt.Sprintf("undefined variable %q", name)).
		WithContext("variable", name)
}

// UndefinedReference reports a placeholder whose reference id was never
// defined by the time substitution ran.
func UndefinedReference(refid string) *RocketError {
	return New(CategoryReference, SeverityError, fmt.Sprintf("undefined reference %q", refid)).
		WithContext("refid", refid)
}

// Config errors

func ConfigNotFound(path string) *RocketError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigInvalid(reason string, cause error) *RocketError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "configuration invalid").
		WithContext("reason", reason)
}

// Build pipeline errors

func BuildFailed(stage string, cause error) *RocketError {
	return Wrap(cause, CategoryInternal, SeverityFatal, "build failed").
		WithContext("stage", stage)
}

func FileSystemError(operation string, cause error) *RocketError {
	return Wrap(cause, CategoryFileSystem, SeverityError, "filesystem operation failed").
		WithContext("operation", operation)
}

func RenderFailed(renderer string, cause error) *RocketError {
	return Wrap(cause, CategoryRender, SeverityError, "rendering failed").
		WithContext("renderer", renderer)
}

// Network errors

func NetworkTimeout(url string, cause error) *RocketError {
	return WrapRetryable(cause, CategoryNetwork, SeverityWarning, "network timeout").
		WithContext("url", url)
}

// Internal errors

func InternalError(message string, cause error) *RocketError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
