package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record does not exist or is owned by
	// another creator. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks caller input that fails domain validation.
	ErrValidation = errors.New("validation error")

	// ErrConflict marks a state transition that is no longer allowed.
	ErrConflict = errors.New("conflict")

	// ErrOperationAborted marks work that was rolled back because the
	// caller cancelled mid-operation.
	ErrOperationAborted = errors.New("operation aborted")

	// ErrUnknownStatus marks a status string from storage that no lifecycle
	// mapping recognizes. It indicates a contract mismatch, never defaulted.
	ErrUnknownStatus = errors.New("unknown status")
)

// WrapAborted maps an error that surfaced while the context was cancelled to
// ErrOperationAborted so callers can tell an aborted request from a failure.
func WrapAborted(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrOperationAborted, err)
	}
	return err
}
