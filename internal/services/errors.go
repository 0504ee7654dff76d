package services

import (
	"errors"
	"fmt"

	apperrors "github.com/learnsphere/exam-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")

	// Exam specific errors
	ErrExamNotFound = errors.New("exam not found")
	ErrEmptyExam    = errors.New("exam has no questions")

	// Attempt specific errors
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrInvalidAttempt covers every rejected submission shape: no active
	// attempt, already submitted, or a duplicate question in the payload.
	// Kept deliberately coarse so responses do not leak attempt state.
	ErrInvalidAttempt = errors.New("invalid attempt")

	// ErrDataIntegrity flags a stored snapshot that no longer decodes.
	ErrDataIntegrity = errors.New("stored attempt data is corrupted")

	// Course/progress specific errors
	ErrCourseNotFound     = errors.New("course not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrItemNotInCourse    = errors.New("item does not belong to course")
	ErrInvalidItemType    = errors.New("invalid completion item type")

	// User errors
	ErrUserNotFound = errors.New("user not found")

	// errDuplicateAttempt is internal: the create/create race resolves by
	// refetching the winner, so callers never see it.
	errDuplicateAttempt = errors.New("duplicate active attempt")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

// ===== ERROR HELPERS =====

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}
