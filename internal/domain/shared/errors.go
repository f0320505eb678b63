// Package shared contains the error taxonomy used across all domain packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidID     = errors.New("invalid ID")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrInvalidFormat = errors.New("invalid format")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrInProgress   = errors.New("operation already in progress")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "student", "cronjob", "codeforces"
	Op      string // Operation that failed, e.g., "Create", "Sync"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Student domain errors
var (
	ErrStudentNotFound      = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrStudentAlreadyExists = NewDomainError("student", "Create", ErrAlreadyExists, "student already exists")
	ErrEmailTaken           = NewDomainError("student", "Validate", ErrAlreadyExists, "email already in use")
	ErrPhoneTaken           = NewDomainError("student", "Validate", ErrAlreadyExists, "phone number already in use")
	ErrHandleTaken          = NewDomainError("student", "Validate", ErrAlreadyExists, "codeforces handle already in use")
	ErrNameRequired         = NewDomainError("student", "Validate", ErrEmptyValue, "name is required")
	ErrMissingHandle        = NewDomainError("student", "Sync", ErrEmptyValue, "student has no codeforces handle")
	ErrSyncInProgress       = NewDomainError("student", "Sync", ErrInProgress, "sync already in progress for student")
)

// Cron job errors
var (
	ErrCronJobNotFound       = NewDomainError("cronjob", "Find", ErrNotFound, "cron job configuration not found")
	ErrInvalidCronExpression = NewDomainError("cronjob", "Validate", ErrInvalidFormat, "invalid cron expression")
)

// Email errors
var (
	ErrMissingEmail = NewDomainError("email", "Send", ErrEmptyValue, "student email not found")
	ErrEmailFailed  = NewDomainError("email", "Send", ErrExternalService, "failed to send email")
)

// External service errors
var (
	ErrJudgeUnavailable     = NewDomainError("codeforces", "Request", ErrServiceUnavailable, "Codeforces API is unavailable")
	ErrJudgeTimeout         = NewDomainError("codeforces", "Request", ErrTimeout, "Codeforces API request timeout")
	ErrJudgeInvalidResponse = NewDomainError("codeforces", "Parse", ErrInvalidFormat, "invalid response from Codeforces API")
	ErrProfileNotFound      = NewDomainError("codeforces", "FetchUserProfile", ErrNotFound, "user not found on Codeforces")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsConflict reports whether the operation collided with one already running.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInProgress)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}
