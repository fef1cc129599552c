// Package errors provides standardized error handling for the compose and
// generation pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSegmentNotFound     ErrorCode = "SEGMENT_NOT_FOUND"
	ErrCodeCatalogItemNotFound ErrorCode = "CATALOG_ITEM_NOT_FOUND"
	ErrCodeCatalogLoadFailed   ErrorCode = "CATALOG_LOAD_FAILED"

	// Retrieval failures always degrade to the deterministic catalog
	// fallback; the code exists for logging, never for API responses.
	ErrCodeRetrievalUnavailable ErrorCode = "RETRIEVAL_UNAVAILABLE"

	ErrCodeContextContractInvalid ErrorCode = "CONTEXT_CONTRACT_INVALID"

	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeBackendTimeout     ErrorCode = "BACKEND_TIMEOUT"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// AsStandard extracts a StandardError from an error chain, or nil.
func AsStandard(err error) *StandardError {
	var se *StandardError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// ==========================
// Error Constructors
// ==========================

// NewSegmentNotFoundError creates a non-retryable unknown-segment error. This
// is the only hard failure the composer can produce.
func NewSegmentNotFoundError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSegmentNotFound,
		Message:   "Unknown segmentation key",
		Details:   fmt.Sprintf("segmentationKey: %s", key),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogItemNotFoundError creates a non-retryable catalog lookup error.
func NewCatalogItemNotFoundError(category, key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogItemNotFound,
		Message:   "Catalog item not found",
		Details:   fmt.Sprintf("category: %s, key: %s", category, key),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogLoadFailedError creates a retryable catalog source error.
func NewCatalogLoadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogLoadFailed,
		Message:   "Catalog source could not be read",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewContextContractInvalidError creates a non-retryable composition error for
// a payload that violates the generation contract schema.
func NewContextContractInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeContextContractInvalid,
		Message:   "Composed context violates the generation contract",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBackendUnavailableError creates a non-retryable live backend error. The
// orchestrator never retries live inference automatically.
func NewBackendUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBackendUnavailable,
		Message:   "Generation backend unavailable",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBackendTimeoutError creates a non-retryable backend timeout error.
func NewBackendTimeoutError(backend string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBackendTimeout,
		Message:   "Generation backend timed out",
		Details:   fmt.Sprintf("backend: %s", backend),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a guardrail failure carrying the full
// ordered set of violated rule identifiers.
func NewValidationFailedError(violations []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Generated message violates guardrails",
		Details:   strings.Join(violations, ","),
		Retryable: false,
		Metadata:  map[string]interface{}{"violations": violations},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable caller error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
