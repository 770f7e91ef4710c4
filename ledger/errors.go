/*
errors.go - Error kinds returned by the ledger

ERROR CATEGORIES:
  1. Client errors   - NotFound, InvalidArgument, InvalidState,
                       InsufficientBalance, PermissionDenied
  2. Warnings        - Persistence (write-back failed, approval kept)

  Every error except a PersistenceWarning leaves the ledger exactly as it
  was before the call.

USAGE:
  err := l.Approve(ctx, id, actor)
  switch {
  case ledger.IsWarning(err):
      // approved, but Used_Leaves was not saved
  case errors.Is(err, ledger.ErrInsufficientBalance):
      // still pending
  }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned for an unknown employee or request id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned when days fall outside [1, quota] or the
	// reason is too long.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState is returned when deciding a request that is no longer pending.
	ErrInvalidState = errors.New("invalid state")

	// ErrInsufficientBalance is returned when an approval would overdraw.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrPermissionDenied is returned when a non-admin tries to decide a request.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPersistence is wrapped by PersistenceWarning.
	ErrPersistence = errors.New("persistence failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InsufficientBalanceError carries the numbers behind a refused approval.
type InsufficientBalanceError struct {
	RequestID  RequestID
	EmployeeID string
	Available  int
	Requested  int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: available %d, requested %d",
		e.EmployeeID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// PersistenceWarning reports a failed write-back. The in-memory mutation that
// triggered it has already been committed and is not rolled back.
type PersistenceWarning struct {
	RequestID RequestID
	Err       error
}

func (w *PersistenceWarning) Error() string {
	if w.RequestID == 0 {
		return fmt.Sprintf("could not save used leaves: %v", w.Err)
	}
	return fmt.Sprintf("request %d committed but used leaves were not saved: %v", w.RequestID, w.Err)
}

func (w *PersistenceWarning) Unwrap() []error {
	return []error{ErrPersistence, w.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsWarning reports whether err is a non-fatal persistence warning.
func IsWarning(err error) bool {
	var w *PersistenceWarning
	return errors.As(err, &w)
}

// IsNotFound reports whether err refers to a missing employee or request.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to the caller's input or the
// request's current state.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrPermissionDenied)
}
