package agentgate

import "time"

// ExecResult holds the outcome of a command execution.
type ExecResult struct {
	// ExitCode is the process exit code. 0 typically indicates success.
	ExitCode int

	// Stdout contains the captured standard output of the process.
	Stdout string

	// Stderr contains the captured standard error of the process.
	Stderr string

	// Duration is the wall-clock time the process took to execute.
	Duration time.Duration

	// Sandboxed indicates whether the command was executed inside a sandbox.
	Sandboxed bool

	// Truncated indicates whether the output was truncated due to size limits.
	Truncated bool

	// Cancelled indicates the run was cancelled; partial output is
	// suppressed and the result is an empty neutral one.
	Cancelled bool

	// RecoveredBy names the recovery strategy that produced this result,
	// or "" when the first attempt succeeded.
	RecoveredBy string
}

// ResultMetadata is the caller-facing metadata envelope for an execution.
type ResultMetadata struct {
	ExitCode        int     `json:"exit_code"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ActionResult is the structured result handed back to the dispatching
// caller for any action variant.
type ActionResult struct {
	// Output is the primary textual payload: combined command output for
	// shell actions, or a summary for file actions.
	Output string `json:"output"`

	// Metadata carries exit code and duration.
	Metadata ResultMetadata `json:"metadata"`

	// Exec holds the full execution result for shell actions, nil otherwise.
	Exec *ExecResult `json:"-"`

	// Patch holds the patch report for file-edit actions, nil otherwise.
	Patch *ApplyReport `json:"-"`
}

// metadataFor builds the metadata envelope from an execution result.
func metadataFor(res *ExecResult) ResultMetadata {
	return ResultMetadata{
		ExitCode:        res.ExitCode,
		DurationSeconds: res.Duration.Seconds(),
	}
}
