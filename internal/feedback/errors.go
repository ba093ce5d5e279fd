package feedback

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by repositories when an update targets a missing row.
var ErrNotFound = errors.New("feedback: record not found")

// ValidationError reports malformed user input; the engine re-prompts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StaleStateError reports an event that does not fit the stored state; the
// engine resets the conversation to the menu.
type StaleStateError struct {
	Step  Step
	Event string
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("stale state: %s not accepted in %s", e.Event, e.Step)
}

// PersistenceError wraps a backend rejection on insert or update.
type PersistenceError struct {
	Op   string
	code string
	Err  error
}

// NewPersistenceError builds a PersistenceError with a normalized backend code.
func NewPersistenceError(op, code string, err error) *PersistenceError {
	return &PersistenceError{Op: op, code: code, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed (code %s): %v", e.Op, e.Code(), e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Code returns the backend error code, or "unknown".
func (e *PersistenceError) Code() string {
	code := strings.TrimSpace(e.code)
	if code == "" {
		return "unknown"
	}
	return code
}
