package credaudit

import (
	"errors"
	"fmt"
)

// ErrorCategory categorizes errors for handling and reporting.
type ErrorCategory string

const (
	// ErrCategoryAuth indicates an authentication or authorization failure.
	ErrCategoryAuth ErrorCategory = "auth"
	// ErrCategoryPermission indicates insufficient permissions.
	ErrCategoryPermission ErrorCategory = "permission"
	// ErrCategoryNetwork indicates a network-related failure.
	ErrCategoryNetwork ErrorCategory = "network"
	// ErrCategoryValidation indicates invalid input or configuration.
	ErrCategoryValidation ErrorCategory = "validation"
	// ErrCategoryNotFound indicates a resource was not found.
	ErrCategoryNotFound ErrorCategory = "not_found"
	// ErrCategoryRateLimit indicates rate limiting.
	ErrCategoryRateLimit ErrorCategory = "rate_limit"
	// ErrCategoryInternal indicates an internal error.
	ErrCategoryInternal ErrorCategory = "internal"
)

// AuditError is a structured error with category and context.
type AuditError struct {
	// Category classifies the error type.
	Category ErrorCategory

	// Message is a human-readable error message.
	Message string

	// Service is the identity provider where the error occurred.
	Service Service

	// Operation is the operation that failed.
	Operation string

	// CredentialID is the id of the credential involved, if any.
	CredentialID string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates whether the operation can be retried on the
	// next scheduled run with a chance of success.
	Retryable bool
}

// Error implements the error interface.
func (e *AuditError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Category, e.Message)
	if e.Service != "" {
		msg = fmt.Sprintf("[%s:%s] %s", e.Service, e.Category, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *AuditError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error's category.
func (e *AuditError) Is(target error) bool {
	var ae *AuditError
	if errors.As(target, &ae) {
		return e.Category == ae.Category
	}
	return false
}

// NewError creates a new AuditError.
func NewError(category ErrorCategory, message string) *AuditError {
	return &AuditError{
		Category: category,
		Message:  message,
	}
}

// WithService sets the service.
func (e *AuditError) WithService(s Service) *AuditError {
	e.Service = s
	return e
}

// WithOperation sets the operation.
func (e *AuditError) WithOperation(op string) *AuditError {
	e.Operation = op
	return e
}

// WithCredential sets the credential id.
func (e *AuditError) WithCredential(id string) *AuditError {
	e.CredentialID = id
	return e
}

// WithCause sets the underlying error.
func (e *AuditError) WithCause(err error) *AuditError {
	e.Cause = err
	return e
}

// WithRetryable marks the error as retryable.
func (e *AuditError) WithRetryable(retryable bool) *AuditError {
	e.Retryable = retryable
	return e
}

// Convenience constructors for common error types

// ErrAuth creates an authentication error.
func ErrAuth(message string) *AuditError {
	return NewError(ErrCategoryAuth, message)
}

// ErrPermission creates a permission error.
func ErrPermission(message string) *AuditError {
	return NewError(ErrCategoryPermission, message)
}

// ErrNetwork creates a network error.
func ErrNetwork(message string) *AuditError {
	return NewError(ErrCategoryNetwork, message).WithRetryable(true)
}

// ErrValidation creates a validation error.
func ErrValidation(message string) *AuditError {
	return NewError(ErrCategoryValidation, message)
}

// ErrNotFound creates a not found error.
func ErrNotFound(resourceType, resourceID string) *AuditError {
	return NewError(ErrCategoryNotFound, fmt.Sprintf("%s not found: %s", resourceType, resourceID)).
		WithCredential(resourceID)
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *AuditError {
	return NewError(ErrCategoryRateLimit, message).WithRetryable(true)
}

// ErrInternal creates an internal error.
func ErrInternal(message string) *AuditError {
	return NewError(ErrCategoryInternal, message)
}

// IsCategory checks if an error is of a specific category.
func IsCategory(err error, category ErrorCategory) bool {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// GetErrorService extracts the service from an error.
func GetErrorService(err error) Service {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Service
	}
	return ""
}
