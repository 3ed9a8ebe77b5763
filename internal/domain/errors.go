package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced story or event does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidTransition is returned when a story status change is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError represents bad or missing input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error for a single field
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// StorageError wraps a failure of the underlying persistence
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ItemError describes one failed item of a batch operation
type ItemError struct {
	Index int
	ID    string
	Err   error
}

// PartialFailureError is returned by batch writes where some items were committed and some were not.
// Items that succeeded stay committed.
type PartialFailureError struct {
	Succeeded int
	Failed    []ItemError
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("item %d (%s): %v", f.Index, f.ID, f.Err))
	}
	return fmt.Sprintf("partial failure: %d succeeded, %d failed: %s",
		e.Succeeded, len(e.Failed), strings.Join(parts, "; "))
}

// FailedIndexes returns the set of batch positions that failed
func (e *PartialFailureError) FailedIndexes() map[int]bool {
	indexes := make(map[int]bool, len(e.Failed))
	for _, f := range e.Failed {
		indexes[f.Index] = true
	}
	return indexes
}
