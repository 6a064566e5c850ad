package utils

import "fmt"

// ValidationError represents an error occurring during request validation.
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// CredentialError indicates the history service rejected our credential.
// It is fatal for the whole request: retrying with the same token cannot
// succeed.
type CredentialError struct {
	StatusCode int
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("history service rejected credentials (status %d)", e.StatusCode)
}

// NewCredentialError creates a CredentialError for the given HTTP status.
func NewCredentialError(statusCode int) error {
	return &CredentialError{StatusCode: statusCode}
}

// TransientFetchError indicates a single chunk/entity fetch failed. The
// aggregator logs it and proceeds with whatever other chunks succeeded.
type TransientFetchError struct {
	EntityID string
	Err      error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("transient fetch failure for %s: %v", e.EntityID, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// NewTransientFetchError wraps a per-chunk fetch failure for an entity.
func NewTransientFetchError(entityID string, err error) error {
	return &TransientFetchError{EntityID: entityID, Err: err}
}

// InsufficientDataError indicates that after cycle extraction and feature
// assembly fewer than the minimum viable number of training rows remained.
type InsufficientDataError struct {
	Rows    int
	MinRows int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient training data: %d rows extracted, %d required", e.Rows, e.MinRows)
}

// NewInsufficientDataError creates an InsufficientDataError.
func NewInsufficientDataError(rows, minRows int) error {
	return &InsufficientDataError{Rows: rows, MinRows: minRows}
}

// ContractMismatchError indicates a prediction referenced a model whose
// feature contract cannot be found or reconciled. Fatal for that request
// only; contracts are never regenerated implicitly.
type ContractMismatchError struct {
	ModelID string
	Reason  string
}

func (e *ContractMismatchError) Error() string {
	return fmt.Sprintf("feature contract mismatch for model %s: %s", e.ModelID, e.Reason)
}

// NewContractMismatchError creates a ContractMismatchError.
func NewContractMismatchError(modelID, reason string) error {
	return &ContractMismatchError{ModelID: modelID, Reason: reason}
}
