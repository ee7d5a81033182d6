package land

import "fmt"

// ValidationError is a malformed request caught before any session is opened.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// ConfigError is a gateway setting a request needs but the deployment lacks.
type ConfigError struct {
	Setting string
}

func (e *ConfigError) Error() string { return e.Setting + " is not configured" }

// NotFoundError means the ledger has no record for ID.
type NotFoundError struct {
	ID  string
	Err error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("land %s not found", e.ID) }

func (e *NotFoundError) Unwrap() error { return e.Err }

// RejectedError is a ledger rejection of a lifecycle action, annotated with
// the status the action requires.
type RejectedError struct {
	Action   Action
	Requires Status
	Err      error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%v (%s requires status %s)", e.Err, e.Action, e.Requires)
}

func (e *RejectedError) Unwrap() error { return e.Err }

// TransitionError is an action that the lifecycle does not allow from a status.
type TransitionError struct {
	Action Action
	From   Status
}

func (e *TransitionError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("cannot %s a land that has not been listed", e.Action)
	}
	return fmt.Sprintf("cannot %s a land in status %s", e.Action, e.From)
}
