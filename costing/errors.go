package costing

import (
	"errors"
	"fmt"
)

// ValidationError rejects malformed lot input before any state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a failed read or write against the backing store.
// The computed state that was about to be written is discarded.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// InvariantViolation is reported when a stored snapshot no longer matches the
// replay of its ledger.
type InvariantViolation struct {
	ItemID   int
	Stored   Snapshot
	Replayed Snapshot
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("item %d: stored snapshot (stock=%d, avg=%s) differs from ledger replay (stock=%d, avg=%s)",
		e.ItemID,
		e.Stored.CurrentStock, e.Stored.AverageUnitCost.String(),
		e.Replayed.CurrentStock, e.Replayed.AverageUnitCost.String(),
	)
}

func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}
