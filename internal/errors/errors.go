package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a moodtrace error code.
type ErrorCode string

const (
	ErrInvalidRequest           ErrorCode = "INVALID_REQUEST"           // 400
	ErrPermissionDenied         ErrorCode = "PERMISSION_DENIED"         // 403
	ErrNotFound                 ErrorCode = "NOT_FOUND"                 // 404
	ErrFileNotFound             ErrorCode = "FILE_NOT_FOUND"            // 404
	ErrInvalidState             ErrorCode = "INVALID_STATE"             // 409
	ErrImportFormat             ErrorCode = "IMPORT_FORMAT"             // 422
	ErrCancelled                ErrorCode = "CANCELLED"                 // 499
	ErrInternal                 ErrorCode = "INTERNAL"                  // 500
	ErrCaptureStartFailed       ErrorCode = "CAPTURE_START_FAILED"      // 500
	ErrTranscriptionUnavailable ErrorCode = "TRANSCRIPTION_UNAVAILABLE" // 501
	ErrStorage                  ErrorCode = "STORAGE_ERROR"             // 503
)

// TraceError represents a structured error with code, status, and details.
type TraceError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *TraceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *TraceError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *TraceError {
	return &TraceError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewPermissionDenied creates a 403 error for camera/microphone access that was
// refused or devices that are absent.
func NewPermissionDenied(device string, cause error) *TraceError {
	msg := fmt.Sprintf("access to %s denied", device)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &TraceError{
		Code:    ErrPermissionDenied,
		Status:  403,
		Message: msg,
		Details: map[string]any{"device": device},
		cause:   cause,
	}
}

// NewNotFound creates a 404 error for when a capture cannot be found.
func NewNotFound(identifier string) *TraceError {
	return &TraceError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("capture not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing import/export file.
func NewFileNotFound(path string) *TraceError {
	return &TraceError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewInvalidState creates a 409 error for an operation that the session
// controller cannot perform in its current state.
func NewInvalidState(op, state string) *TraceError {
	return &TraceError{
		Code:    ErrInvalidState,
		Status:  409,
		Message: fmt.Sprintf("cannot %s while %s", op, state),
		Details: map[string]any{"operation": op, "state": state},
	}
}

// NewImportFormat creates a 422 error for a malformed import payload.
func NewImportFormat(msg string) *TraceError {
	return &TraceError{
		Code:    ErrImportFormat,
		Status:  422,
		Message: msg,
	}
}

// NewCancelled creates a 499 error for an operation aborted by its context.
func NewCancelled(op string) *TraceError {
	return &TraceError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"operation": op},
	}
}

// NewCaptureStartFailed creates an error for a media pipeline that failed to
// start after permissions were granted.
func NewCaptureStartFailed(cause error) *TraceError {
	msg := "media capture failed to start"
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &TraceError{
		Code:    ErrCaptureStartFailed,
		Status:  500,
		Message: msg,
		cause:   cause,
	}
}

// NewTranscriptionUnavailable creates a 501 error for hosts without a speech
// transcription capability.
func NewTranscriptionUnavailable(reason string) *TraceError {
	return &TraceError{
		Code:    ErrTranscriptionUnavailable,
		Status:  501,
		Message: fmt.Sprintf("speech transcription unavailable: %s", reason),
	}
}

// NewStorage creates a 503 error for a persistence layer failure.
func NewStorage(op string, cause error) *TraceError {
	msg := fmt.Sprintf("storage %s failed", op)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &TraceError{
		Code:    ErrStorage,
		Status:  503,
		Message: msg,
		Details: map[string]any{"operation": op},
		cause:   cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details for logging.
func NewInternal(err error) *TraceError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &TraceError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		cause:   err,
	}
}

// Is checks if an error is (or wraps) a TraceError with the given code.
func Is(err error, code ErrorCode) bool {
	var tErr *TraceError
	if stderrors.As(err, &tErr) {
		return tErr.Code == code
	}
	return false
}

// As returns the TraceError carried by err, wrapping foreign errors as INTERNAL.
func As(err error) *TraceError {
	if err == nil {
		return nil
	}
	var tErr *TraceError
	if stderrors.As(err, &tErr) {
		return tErr
	}
	return NewInternal(err)
}
