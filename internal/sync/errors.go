package sync

import (
	"fmt"
)

// Result classifies what a reconciliation did.
type Result string

const (
	// ResultCreated means a new calendar event and mapping were created.
	ResultCreated Result = "created"
	// ResultUpdated means the existing event's deadline was moved.
	ResultUpdated Result = "updated"
	// ResultUnchanged means the mapping already matched; no calendar call
	// was made.
	ResultUnchanged Result = "unchanged"
)

// ValidationError reports a malformed assignment. Redelivering the same
// payload will fail the same way, so callers should not retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid assignment: %s %s", e.Field, e.Reason)
}

// UpstreamError wraps a failure from the calendar provider or the mapping
// store. Retry policy belongs to the caller.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ConflictError reports that a concurrent writer changed the mapping between
// read and write. A later redelivery will observe the winner's mapping and
// reconcile against it.
type ConflictError struct {
	AssignmentID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent mapping write for assignment %s", e.AssignmentID)
}
