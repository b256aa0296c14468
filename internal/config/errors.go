package config

import "fmt"

// ParseError reports a configuration file that could not be parsed.
type ParseError struct {
	// Path is the file that failed to parse.
	Path string
	// Message describes the parse failure.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError reports a field holding an unusable value.
type ValidationError struct {
	// Field is the TOML key that failed validation.
	Field string
	// Message describes the constraint that was violated.
	Message string
	// Value is the offending value.
	Value any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s (got %v)", e.Field, e.Message, e.Value)
}
