package statemachine

import "fmt"

// ConflictError reports that another transition is already in flight for the
// session, or that an optimistic status update lost its race. The caller may
// retry later; session state is unchanged.
type ConflictError struct {
	SessionID int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("session %d: transition already in progress", e.SessionID)
}

// PreconditionError reports that a requested transition's prerequisite is
// missing. The request is rejected and session state is unchanged.
type PreconditionError struct {
	SessionID int64
	Reason    string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("session %d: precondition not met: %s", e.SessionID, e.Reason)
}
