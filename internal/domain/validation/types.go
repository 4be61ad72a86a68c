// Package validation provides the input validator used by tool handlers:
// free-form text sanitization, file path checks and URL checks.
package validation

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a validation failure.
type ErrorKind string

const (
	// KindInvalidInput is a type, length or denylisted-pattern violation.
	KindInvalidInput ErrorKind = "invalid_input"

	// KindPathTraversal is a file path escaping its root or using forbidden characters.
	KindPathTraversal ErrorKind = "path_traversal"

	// KindURLScheme is a URL whose scheme is not in the allowed set.
	KindURLScheme ErrorKind = "url_scheme"

	// KindURLPrivateNetwork is a URL whose literal host names a private or loopback address.
	KindURLPrivateNetwork ErrorKind = "url_private_network"
)

// ValidationError represents a validation failure.
// The Message field contains a safe message for the client (no internal details).
type ValidationError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Message is a safe, client-facing error message.
	Message string

	// Rule names the denylist rule that matched, if any.
	Rule string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("%s: %s (rule %s)", e.Kind, e.Message, e.Rule)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewValidationError creates a new ValidationError with the given kind and message.
func NewValidationError(kind ErrorKind, message string) *ValidationError {
	return &ValidationError{
		Kind:    kind,
		Message: message,
	}
}

// KindOf returns the kind of a *ValidationError anywhere in err's chain,
// or "" if there is none.
func KindOf(err error) ErrorKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

// IsPathTraversal reports whether err is a path traversal rejection.
func IsPathTraversal(err error) bool { return KindOf(err) == KindPathTraversal }

// IsURLScheme reports whether err is a disallowed URL scheme rejection.
func IsURLScheme(err error) bool { return KindOf(err) == KindURLScheme }

// IsURLPrivateNetwork reports whether err is a private network URL rejection.
func IsURLPrivateNetwork(err error) bool { return KindOf(err) == KindURLPrivateNetwork }
