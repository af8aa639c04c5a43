package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a task does not exist or was deleted.
	ErrNotFound = errors.New("task not found")
	// ErrTaskClosed is returned when a completed or deleted task is asked to change state.
	ErrTaskClosed = errors.New("task is already closed")
	// ErrStoreUnavailable matches every *StoreError.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError rejects malformed input before any state changes.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StoreError wraps a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

// storeErr classifies a repository error. Missing rows become ErrNotFound and
// domain errors pass through unchanged.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTaskClosed), errors.As(err, &verr):
		return err
	case errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return &StoreError{Op: op, Err: err}
	}
}
