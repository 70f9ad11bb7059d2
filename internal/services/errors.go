package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/proctoring-service/internal/errors"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")

	// Test access errors
	ErrTestNotFound   = errors.New("test not found or not accessible")
	ErrTestNotStarted = errors.New("test has not started yet")
	ErrTestEnded      = errors.New("test has ended")

	// Attempt errors
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrAttemptConflict         = errors.New("attempt creation conflict could not be resolved")

	// Ledger errors
	ErrEventNotFound = errors.New("proctoring event not found")

	// Infrastructure errors
	ErrDatabaseUnavailable = errors.New("database unavailable")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// IdentityMismatchError is returned when the authenticated caller acts for another student.
type IdentityMismatchError struct {
	Authenticated string `json:"authenticated"`
	Requested     string `json:"requested"`
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("authenticated user %s cannot act for student %s", e.Authenticated, e.Requested)
}

func (e *IdentityMismatchError) Unwrap() error {
	return ErrForbidden
}

// ===== ERROR HELPERS =====

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTestNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrEventNotFound)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAttemptAlreadySubmitted)
}

// IsAccessDenied checks if error is a time-window or identity rejection
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrTestNotStarted) ||
		errors.Is(err, ErrTestEnded)
}

// IsUnavailable checks if the backing store could not be reached
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDatabaseUnavailable) ||
		errors.Is(err, repositories.ErrUnavailable)
}
