package scenario

import "fmt"

// PreconditionError means scenario setup failed: checkout refused, a file
// the scenario expects is missing, or a commit hash in the record no longer
// resolves. Recoverable at scenario granularity — the driver tears the
// scenario down and moves on to the next one.
type PreconditionError struct {
	Scenario string
	Reason   string
	Err      error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("precondition failed for scenario %s: %s: %v", e.Scenario, e.Reason, e.Err)
	}
	return fmt.Sprintf("precondition failed for scenario %s: %s", e.Scenario, e.Reason)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// EnvironmentError means a driver-issued command inside the container
// (clone, branch switch, status, evaluation) returned non-zero or the
// container itself could not be reached. Recoverable at repository
// granularity: the driver tears the whole repository's container down and
// re-runs setup.
type EnvironmentError struct {
	Command  string
	ExitCode int
	Timeout  bool
	Err      error
}

func (e *EnvironmentError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("command %q timed out", e.Command)
	}
	if e.Err != nil {
		return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("command %q exited %d", e.Command, e.ExitCode)
}

func (e *EnvironmentError) Unwrap() error { return e.Err }

// IsTimeout reports whether this EnvironmentError is the TimeoutError
// subtype: the `timeout` wrapper killed the command rather than the command
// itself failing. A timed-out scenario is scored as failed, not retried.
func (e *EnvironmentError) IsTimeout() bool { return e.Timeout }

// NewTimeoutError builds the TimeoutError subtype of EnvironmentError.
func NewTimeoutError(command string) *EnvironmentError {
	return &EnvironmentError{Command: command, Timeout: true}
}

// ConfigurationError means the call itself is malformed: an unsupported
// scenario kind, a scenario record missing a required payload, or an
// unrecognized language tag. Fatal to the current call — it is surfaced to
// the caller rather than retried or skipped.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// PermissionError means a command an agent asked the sandbox to run matched
// the deny list. It is never raised as a Go error from ExecuteBashCommand —
// the driver returns it as an ordinary exec result string so the agent sees
// its own infraction in the transcript it is working from. The type exists
// so callers that inspect results programmatically (tests, summarize) have
// something to match on.
type PermissionError struct {
	Command string
	Matched string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("command %q denied: matched %q", e.Command, e.Matched)
}

// DataError means a scenario record or a piece of git output could not be
// parsed. Fatal to the current scenario; the repository's remaining
// scenarios still run.
type DataError struct {
	Source string
	Err    error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("could not parse %s: %v", e.Source, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }
