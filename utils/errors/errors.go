package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// APIError represents a custom error type for API responses
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
	// Violations lists the offending fields of a rejected record.
	Violations []string `json:"violations,omitempty"`
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrUnauthorized = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound     = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrInternal     = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
)

// Domain error kinds. Callers wrap them with fmt.Errorf("...: %w") and test
// with errors.Is.
var (
	ErrConfig            = stderrors.New("config error")
	ErrStorage           = stderrors.New("storage error")
	ErrValidation        = stderrors.New("validation error")
	ErrPOINotFound       = stderrors.New("poi not found")
	ErrWorkflowBusy      = stderrors.New("another workflow is open")
	ErrInvalidTransition = stderrors.New("invalid workflow transition")
	ErrAuthDisabled      = stderrors.New("authentication is not configured")
)

// Violator is implemented by errors that carry per-field violations, such as
// schema.SchemaError.
type Violator interface {
	ViolationMessages() []string
}

func Wrap(err error, code, message string, status int) *APIError {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}

// FromError maps a domain error onto its API representation.
func FromError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case stderrors.Is(err, ErrValidation):
		out := NewAPIError("VALIDATION_FAILED", "Record failed validation", http.StatusBadRequest, err.Error())
		var v Violator
		if stderrors.As(err, &v) {
			out.Violations = v.ViolationMessages()
		}
		return out
	case stderrors.Is(err, ErrPOINotFound):
		return NewAPIError("POI_NOT_FOUND", "POI not found", http.StatusNotFound, err.Error())
	case stderrors.Is(err, ErrWorkflowBusy):
		return NewAPIError("WORKFLOW_BUSY", "Another workflow is open", http.StatusConflict, err.Error())
	case stderrors.Is(err, ErrInvalidTransition):
		return NewAPIError("INVALID_TRANSITION", "Event not allowed in current state", http.StatusConflict, err.Error())
	case stderrors.Is(err, ErrAuthDisabled):
		return NewAPIError("AUTH_DISABLED", "Authentication is not configured", http.StatusNotFound)
	case stderrors.Is(err, ErrStorage):
		return NewAPIError("STORAGE_ERROR", "Failed to persist POI table", http.StatusInternalServerError, err.Error())
	}
	return Wrap(err, "UNKNOWN_ERROR", "Unexpected error", http.StatusInternalServerError)
}

// Is reports whether err matches target. Re-exported so callers importing
// this package under the name errors keep access to the standard helpers.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is the standard errors.As.
func As(err error, target any) bool { return stderrors.As(err, target) }
