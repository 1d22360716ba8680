package errors

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeConflict          ErrorType = "conflict"
	ErrorTypeUnauthorized      ErrorType = "unauthorized"
	ErrorTypeForbidden         ErrorType = "forbidden"
	ErrorTypeInsufficientRoles ErrorType = "insufficient_roles"
	ErrorTypeInternal          ErrorType = "internal"
	ErrorTypeDatabase          ErrorType = "database"
	ErrorTypeCleanup           ErrorType = "cleanup_failed"
	ErrorTypeNetwork           ErrorType = "network"
)

// APIError represents a structured API error
type APIError struct {
	Type        ErrorType              `json:"type"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	HTTPStatus  int                    `json:"-"`
	InternalErr error                  `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.InternalErr != nil {
		return fmt.Sprintf("%s (%s): %v", e.Message, e.Code, e.InternalErr)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Unwrap returns the underlying error
func (e *APIError) Unwrap() error {
	return e.InternalErr
}

// WithDetail returns a copy of the error carrying an extra details entry.
func (e *APIError) WithDetail(key string, value interface{}) *APIError {
	clone := *e
	clone.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return &clone
}

// NewAPIError creates a new API error
func NewAPIError(errorType ErrorType, code, message string, httpStatus int) *APIError {
	return &APIError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// NewAPIErrorWithDetails creates a new API error with details
func NewAPIErrorWithDetails(errorType ErrorType, code, message string, details map[string]interface{}, httpStatus int) *APIError {
	return &APIError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Details:    details,
		HTTPStatus: httpStatus,
	}
}

// NewAPIErrorWithCause creates a new API error with an underlying cause
func NewAPIErrorWithCause(errorType ErrorType, code, message string, httpStatus int, cause error) *APIError {
	return &APIError{
		Type:        errorType,
		Code:        code,
		Message:     message,
		HTTPStatus:  httpStatus,
		InternalErr: cause,
	}
}

// Predefined error constructors

// ValidationError creates a validation error
func ValidationError(code, message string) *APIError {
	return NewAPIError(ErrorTypeValidation, code, message, http.StatusBadRequest)
}

// ValidationErrorWithDetails creates a validation error with details
func ValidationErrorWithDetails(code, message string, details map[string]interface{}) *APIError {
	return NewAPIErrorWithDetails(ErrorTypeValidation, code, message, details, http.StatusBadRequest)
}

// NotFoundError creates a not found error
func NotFoundError(resource string) *APIError {
	return NewAPIError(ErrorTypeNotFound, "RESOURCE_NOT_FOUND", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ConflictError creates a conflict error
func ConflictError(message string) *APIError {
	return NewAPIError(ErrorTypeConflict, "RESOURCE_CONFLICT", message, http.StatusConflict)
}

// UnauthorizedError creates an unauthorized error
func UnauthorizedError(message string) *APIError {
	return NewAPIError(ErrorTypeUnauthorized, "UNAUTHORIZED", message, http.StatusUnauthorized)
}

// ForbiddenError creates an insufficient permissions error
func ForbiddenError(message string) *APIError {
	return NewAPIError(ErrorTypeForbidden, "INSUFFICIENT_PERMISSIONS", message, http.StatusForbidden)
}

// InsufficientRolesError is returned when the caller holds no role at all
func InsufficientRolesError() *APIError {
	return NewAPIError(ErrorTypeInsufficientRoles, "INSUFFICIENT_ROLES", "Caller has no assigned roles", http.StatusForbidden)
}

// InternalError creates an internal server error
func InternalError(message string) *APIError {
	return NewAPIError(ErrorTypeInternal, "INTERNAL_ERROR", message, http.StatusInternalServerError)
}

// InternalErrorWithCause creates an internal server error with cause
func InternalErrorWithCause(message string, cause error) *APIError {
	return NewAPIErrorWithCause(ErrorTypeInternal, "INTERNAL_ERROR", message, http.StatusInternalServerError, cause)
}

// DatabaseError creates a database error
func DatabaseError(operation string, cause error) *APIError {
	return NewAPIErrorWithCause(ErrorTypeDatabase, "DATABASE_ERROR",
		fmt.Sprintf("Database operation failed: %s", operation),
		http.StatusInternalServerError, cause)
}

// CleanupFailedError reports the cleanup step that aborted a permanent deletion
func CleanupFailedError(step string, cause error) *APIError {
	apiErr := NewAPIErrorWithCause(ErrorTypeCleanup, "CLEANUP_FAILED",
		fmt.Sprintf("Cleanup failed at step %s", step),
		http.StatusInternalServerError, cause)
	apiErr.Details = map[string]interface{}{"step": step}
	return apiErr
}

// NetworkError creates a network error
func NetworkError(operation string, cause error) *APIError {
	return NewAPIErrorWithCause(ErrorTypeNetwork, "NETWORK_ERROR",
		fmt.Sprintf("Network operation failed: %s", operation),
		http.StatusInternalServerError, cause)
}

// Error handling utilities

// IsAPIError checks if an error is an APIError
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// GetAPIError extracts APIError from an error chain
func GetAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// WrapError wraps a generic error into an APIError
func WrapError(err error, errorType ErrorType, code, message string, httpStatus int) *APIError {
	return NewAPIErrorWithCause(errorType, code, message, httpStatus, err)
}

// HandleDatabaseError maps a gorm error to an APIError
func HandleDatabaseError(err error, operation, resource string) *APIError {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFoundError(resource)
	}
	return DatabaseError(operation, err)
}
