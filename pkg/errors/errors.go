// Package errors provides structured error types for gitlab-composer.
//
// This package defines error codes and types that enable:
//   - Consistent failure scoping across the resolution engine and CLI
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes map onto the failure taxonomy of a resolution pass:
//   - CONFIGURATION_ERROR: malformed or missing configuration (fatal at startup)
//   - TRANSPORT_ERROR: non-2xx or network failure talking to the remote API
//   - INVALID_REF_NAME: a branch or tag name that cannot be normalized (ref skipped)
//   - ROOT_IDENTIFIER_NOT_FOUND: default branch missing (project skipped)
//   - MANIFEST_ABSENT: composer.json missing or invalid (project or ref skipped)
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfiguration, "base_url is required")
//	if errors.Is(err, errors.ErrCodeConfiguration) {
//	    // Abort before any network traffic
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeManifestAbsent, origErr, "composer.json at %s", sha)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Resolution pass errors
	ErrCodeConfiguration          Code = "CONFIGURATION_ERROR"
	ErrCodeTransport              Code = "TRANSPORT_ERROR"
	ErrCodeInvalidRefName         Code = "INVALID_REF_NAME"
	ErrCodeRootIdentifierNotFound Code = "ROOT_IDENTIFIER_NOT_FOUND"
	ErrCodeManifestAbsent         Code = "MANIFEST_ABSENT"

	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" && e.Cause == nil {
		return string(e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code and no message,
// which lets package-level sentinels match any error carrying their code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Cause == nil
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Sentinel returns a message-less *Error for code. Use it to declare
// package-level sentinels compatible with errors.Is.
func Sentinel(code Code) *Error {
	return &Error{Code: code}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
// A *TransportError matches ErrCodeTransport.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error carries no code.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var te *TransportError
	if errors.As(err, &te) {
		return ErrCodeTransport
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// TransportError reports a failed exchange with the remote API. StatusCode is
// zero when no HTTP response was received (connection failure, timeout,
// malformed body).
type TransportError struct {
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", ErrCodeTransport, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrCodeTransport, msg)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status carried by a *TransportError in err's
// chain, or 0 when there is none.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
