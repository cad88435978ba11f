package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a router error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrNoMatch         ErrorCode = "NO_MATCH"         // 404
	ErrDuplicate       ErrorCode = "DUPLICATE"        // 409
	ErrStaleReference  ErrorCode = "STALE_REFERENCE"  // 410
	ErrUnresolvedToken ErrorCode = "UNRESOLVED_TOKEN" // 422
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"   // 404
	ErrInternal        ErrorCode = "INTERNAL"         // 500
)

// NoMatchMessage is what callers show the user when nothing resolves.
const NoMatchMessage = "I don't know how to do that yet"

// RouterError represents a structured error with code, status, and details.
type RouterError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *RouterError {
	return &RouterError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing pattern or trace.
func NewNotFound(kind, identifier string) *RouterError {
	return &RouterError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewNoMatch creates the expected, non-fatal outcome of a resolution that
// exhausted every stage.
func NewNoMatch(request string) *RouterError {
	return &RouterError{
		Code:    ErrNoMatch,
		Status:  404,
		Message: NoMatchMessage,
		Details: map[string]any{"request": request},
	}
}

// NewDuplicate creates a 409 error when a template is already registered in a scope.
func NewDuplicate(pattern, scope string) *RouterError {
	return &RouterError{
		Code:    ErrDuplicate,
		Status:  409,
		Message: fmt.Sprintf("pattern %q already exists in scope %q", pattern, scope),
		Details: map[string]any{"pattern": pattern, "scope": scope},
	}
}

// NewStaleReference reports a trace pointing at a pattern that no longer exists.
func NewStaleReference(patternID string) *RouterError {
	return &RouterError{
		Code:    ErrStaleReference,
		Status:  410,
		Message: fmt.Sprintf("referenced pattern no longer exists: %s", patternID),
		Details: map[string]any{"pattern_id": patternID},
	}
}

// NewUnresolvedToken creates a 422 error for an interpolation token with no binding.
func NewUnresolvedToken(token string, step int) *RouterError {
	return &RouterError{
		Code:    ErrUnresolvedToken,
		Status:  422,
		Message: fmt.Sprintf("unresolved token {{%s}} in step %d", token, step),
		Details: map[string]any{"token": token, "step": step},
	}
}

// NewFileNotFound creates a 404 error for a missing catalog file.
func NewFileNotFound(path string) *RouterError {
	return &RouterError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewInternal creates a 500 error for storage faults and other unexpected errors.
func NewInternal(err error) *RouterError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &RouterError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a RouterError with the given code.
func Is(err error, code ErrorCode) bool {
	var rErr *RouterError
	if stderrors.As(err, &rErr) {
		return rErr.Code == code
	}
	return false
}
