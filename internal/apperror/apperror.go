// Package apperror defines the error taxonomy shared by the pipeline, the
// service layer and the HTTP handlers.
//
// Every constructor returns an *AppError that wraps one sentinel, so callers
// classify with errors.Is and read the human message with errors.As:
//
//	var appErr *apperror.AppError
//	if errors.As(err, &appErr) && errors.Is(err, apperror.ErrLaunch) { ... }
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")

	// Pipeline failures. A stage never lets these escape; they end up in the
	// StageResult diagnostic.
	ErrFilesystem       = errors.New("filesystem error")
	ErrLaunch           = errors.New("launch error")
	ErrTimedOut         = errors.New("timed out")
	ErrCancelled        = errors.New("cancelled")
	ErrArtifactNotFound = errors.New("artifact not found")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error (os, exec, ...)
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Unauthorized returns an AppError for a missing or rejected bearer token.
// HTTP handlers map this to 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Filesystem reports a failed directory or file operation on path.
func Filesystem(op, path string, cause error) *AppError {
	return &AppError{
		Err:     ErrFilesystem,
		Message: fmt.Sprintf("%s %s: %v", op, path, cause),
		Cause:   cause,
	}
}

// Launch reports an executable that could not be started at all. The message
// always names the executable.
func Launch(executable string, cause error) *AppError {
	return &AppError{
		Err:     ErrLaunch,
		Message: fmt.Sprintf("cannot start %q: %v", executable, cause),
		Cause:   cause,
	}
}

func TimedOut(executable string, after fmt.Stringer) *AppError {
	return &AppError{
		Err:     ErrTimedOut,
		Message: fmt.Sprintf("%s killed after %s deadline", executable, after),
	}
}

func Cancelled(executable string) *AppError {
	return &AppError{
		Err:     ErrCancelled,
		Message: fmt.Sprintf("%s killed: run cancelled", executable),
	}
}

// ArtifactNotFound is the VerifyArtifact failure. Its message is the fixed
// diagnostic "no artifact" followed by the directory that was searched.
func ArtifactNotFound(dir string) *AppError {
	return &AppError{
		Err:     ErrArtifactNotFound,
		Message: fmt.Sprintf("no artifact in %s", dir),
	}
}
