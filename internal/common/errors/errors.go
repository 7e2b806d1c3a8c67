// Package errors provides standardized error handling for the matchmaking
// service layer.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Validation errors block a write before it reaches the store.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidCategory  ErrorCode = "INVALID_CATEGORY"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"

	// Not-found errors: a referenced id is absent. Joins degrade to
	// sentinel values rather than failing the whole aggregate.
	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeUserNotFound   ErrorCode = "USER_NOT_FOUND"

	// Store errors: the underlying document store operation failed.
	ErrCodeStoreConnectionFailed ErrorCode = "STORE_CONNECTION_FAILED"
	ErrCodeStoreQueryFailed      ErrorCode = "STORE_QUERY_FAILED"
	ErrCodeStoreWriteFailed      ErrorCode = "STORE_WRITE_FAILED"

	// Membership queries carry a cardinality cap; callers must batch.
	ErrCodeMembershipLimitExceeded ErrorCode = "MEMBERSHIP_LIMIT_EXCEEDED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeSearchQueryFailed      ErrorCode = "SEARCH_QUERY_FAILED"
)

// Category sentinels for errors.Is checks across package boundaries.
var (
	ErrValidation = stderrors.New("validation failed")
	ErrNotFound   = stderrors.New("record not found")
	ErrStore      = stderrors.New("store operation failed")
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
	category  error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the taxonomy sentinel so errors.Is(err, ErrNotFound)
// works regardless of the concrete code.
func (e *StandardError) Unwrap() error {
	return e.category
}

// NewValidationError creates a non-retryable field validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Required field missing or malformed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		category:  ErrValidation,
	}
}

// NewInvalidCategoryError creates a non-retryable category enum error.
func NewInvalidCategoryError(category string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidCategory,
		Message:   "Category is not in the allowed set",
		Details:   fmt.Sprintf("category: %s", category),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		category:  ErrValidation,
	}
}

// NewInvalidAmountError creates a non-retryable investment amount error.
func NewInvalidAmountError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidAmount,
		Message:   "Investment amount must be a positive number",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		category:  ErrValidation,
	}
}

// NewRecordNotFoundError creates a non-retryable missing record error.
func NewRecordNotFoundError(collection, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotFound,
		Message:   "Record not found",
		Details:   fmt.Sprintf("collection: %s, id: %s", collection, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		category:  ErrNotFound,
	}
}

// NewUserNotFoundError creates a non-retryable missing directory entry error.
func NewUserNotFoundError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUserNotFound,
		Message:   "User not found in directory",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		category:  ErrNotFound,
	}
}

// NewStoreConnectionFailedError creates a retryable store connection error.
func NewStoreConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreConnectionFailed,
		Message:   "Document store connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		category:  ErrStore,
	}
}

// NewStoreQueryFailedError creates a retryable store query error.
func NewStoreQueryFailedError(collection string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreQueryFailed,
		Message:   "Document store query error",
		Details:   fmt.Sprintf("collection: %s, error: %s", collection, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		category:  ErrStore,
	}
}

// NewStoreWriteFailedError creates a retryable store write error.
func NewStoreWriteFailedError(collection string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreWriteFailed,
		Message:   "Document store write error",
		Details:   fmt.Sprintf("collection: %s, error: %s", collection, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		category:  ErrStore,
	}
}

// NewMembershipLimitExceededError creates a non-retryable cardinality error.
// The caller is expected to batch, not retry.
func NewMembershipLimitExceededError(field string, got, limit int) *StandardError {
	return &StandardError{
		Code:      ErrCodeMembershipLimitExceeded,
		Message:   "Membership query exceeds store cardinality limit",
		Details:   fmt.Sprintf("field: %s, values: %d, limit: %d", field, got, limit),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		category:  ErrStore,
	}
}

// NewNotificationSendFailedError creates a retryable notification error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		category:  ErrStore,
	}
}

// NewSearchQueryFailedError creates a retryable search index error.
func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Search index query error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		category:  ErrStore,
	}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return stderrors.Is(err, ErrValidation)
}

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

// IsStore reports whether err is an underlying store failure.
func IsStore(err error) bool {
	return stderrors.Is(err, ErrStore)
}
