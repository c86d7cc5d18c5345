package domain

import "strings"

// StepStatus represents the lifecycle state of a step within one build.
type StepStatus string

const (
	// StepStatusPending indicates the step has not started.
	StepStatusPending StepStatus = "pending"
	// StepStatusRunning indicates the step is being fingerprinted or executed.
	StepStatusRunning StepStatus = "running"
	// StepStatusCommitted indicates the step produced (or reused) a committed snapshot.
	StepStatusCommitted StepStatus = "committed"
	// StepStatusFailed indicates the step failed and the build was aborted.
	StepStatusFailed StepStatus = "failed"
)

// LogLevel represents the severity of a log message, mirroring the standard slog levels.
type LogLevel int

const (
	// LogLevelDebug represents debug-level verbosity.
	LogLevelDebug LogLevel = -4
	// LogLevelInfo represents informational verbosity.
	LogLevelInfo LogLevel = 0
	// LogLevelWarn represents warning verbosity.
	LogLevelWarn LogLevel = 4
	// LogLevelError represents error verbosity.
	LogLevelError LogLevel = 8
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// IsTerminal checks if a status is a terminal state (Committed, Failed).
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCommitted || s == StepStatusFailed
}

// CanTransition reports whether a step may move from s to next.
func (s StepStatus) CanTransition(next StepStatus) bool {
	switch s {
	case StepStatusPending:
		return next == StepStatusRunning
	case StepStatusRunning:
		return next.IsTerminal()
	default:
		return false
	}
}

// NormalizeStepStatus converts a string to a StepStatus, defaulting to pending if unknown.
func NormalizeStepStatus(s string) StepStatus {
	switch strings.ToLower(s) {
	case string(StepStatusRunning):
		return StepStatusRunning
	case string(StepStatusCommitted):
		return StepStatusCommitted
	case string(StepStatusFailed):
		return StepStatusFailed
	default:
		return StepStatusPending
	}
}
