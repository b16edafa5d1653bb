package model

// BatchStatus represents the state of a job, step or partition execution.
type BatchStatus string

const (
	BatchStatusStarting  BatchStatus = "STARTING"
	BatchStatusStarted   BatchStatus = "STARTED"
	BatchStatusStopping  BatchStatus = "STOPPING"
	BatchStatusStopped   BatchStatus = "STOPPED"
	BatchStatusFailed    BatchStatus = "FAILED"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusAbandoned BatchStatus = "ABANDONED"
)

// String returns the string representation of the BatchStatus.
func (s BatchStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further work happens in this status.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusStopped, BatchStatusFailed, BatchStatusCompleted, BatchStatusAbandoned:
		return true
	default:
		return false
	}
}

// IsRestartable reports whether a job execution in this status may be restarted.
func (s BatchStatus) IsRestartable() bool {
	return s == BatchStatusStopped || s == BatchStatusFailed
}

// CanTransitionTo reports whether a job execution may move from s to next.
//
//	STARTING -> STARTED | STOPPED | FAILED
//	STARTED  -> STOPPING | FAILED | COMPLETED
//	STOPPING -> STOPPED | FAILED | COMPLETED
//	STOPPED, FAILED -> ABANDONED
//
// Re-writing the current status is allowed until the execution is terminal.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	if s == next {
		return !s.IsTerminal()
	}
	switch s {
	case BatchStatusStarting:
		return next == BatchStatusStarted || next == BatchStatusStopped || next == BatchStatusFailed
	case BatchStatusStarted:
		return next == BatchStatusStopping || next == BatchStatusFailed || next == BatchStatusCompleted
	case BatchStatusStopping:
		return next == BatchStatusStopped || next == BatchStatusFailed || next == BatchStatusCompleted
	case BatchStatusStopped, BatchStatusFailed:
		return next == BatchStatusAbandoned
	default:
		return false
	}
}

// ToExitStatus converts the BatchStatus to its default ExitStatus.
func (s BatchStatus) ToExitStatus() ExitStatus {
	return ExitStatus(s)
}

// Severity orders terminal outcomes when several are combined: FAILED beats STOPPED beats COMPLETED.
func (s BatchStatus) Severity() int {
	switch s {
	case BatchStatusFailed:
		return 3
	case BatchStatusStopped, BatchStatusStopping:
		return 2
	case BatchStatusCompleted:
		return 1
	default:
		return 0
	}
}

// ExitStatus is the user-visible outcome string of a job, step or partition.
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	ExitStatusFailed    ExitStatus = "FAILED"
	ExitStatusStopped   ExitStatus = "STOPPED"
	ExitStatusAbandoned ExitStatus = "ABANDONED"
)

// String returns the ExitStatus as a string.
func (s ExitStatus) String() string {
	return string(s)
}

// IsDefault reports whether the exit status is the default one for some batch status,
// as opposed to a value chosen by a component.
func (s ExitStatus) IsDefault() bool {
	switch BatchStatus(s) {
	case BatchStatusStarting, BatchStatusStarted, BatchStatusStopping, BatchStatusStopped,
		BatchStatusFailed, BatchStatusCompleted, BatchStatusAbandoned:
		return true
	default:
		return s == ExitStatusUnknown
	}
}
