package ledger

import "fmt"

// ValidationError reports a rejected input. No state was changed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports that the target of an operation does not exist,
// e.g. a payment for a debtor without open debts. No state was changed.
type NotFoundError struct {
	What string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s not found: %v", e.What, e.Err)
	}
	return e.What + " not found"
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// PersistenceError reports a failed local write. The in-memory state keeps
// the mutation and stays valid for the session, but is at risk on reload.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
