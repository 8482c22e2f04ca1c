package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrUnhandledEvent is returned when the dispatcher receives an event it has no procedure for.
	ErrUnhandledEvent = errors.New("unhandled change event")
	// ErrPlaceholder is returned when a procedure is asked to move an Unknown Work or Unknown Book.
	ErrPlaceholder = errors.New("unknown placeholders cannot be repositioned")
	// ErrNotInScope is returned when a link or work is not part of the scope it is moved in.
	ErrNotInScope = errors.New("item is not part of the scope")
)

// Error wraps a failure of one reconciliation procedure. The surrounding transaction is
// rolled back, so no scope is left half renumbered.
type Error struct {
	Procedure string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("reconcile %s: %v", e.Procedure, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsReconcileError reports whether err was raised by a reconciliation procedure.
func IsReconcileError(err error) bool {
	var re *Error
	return errors.As(err, &re)
}

func wrap(procedure string, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	return &Error{Procedure: procedure, Err: err}
}
