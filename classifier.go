package agentgate

// unknownStr is the string representation for unknown enum values.
const unknownStr = "unknown"

// Classifier is the safety table consulted by the approval engine. It
// inspects a command and decides how much trust it deserves before the
// policy level is applied.
type Classifier interface {
	// Classify inspects a shell command string and returns a classification result.
	Classify(command string) ClassifyResult

	// ClassifyArgs inspects a command specified as a program name and argument list.
	ClassifyArgs(name string, args []string) ClassifyResult
}

// Decision represents the classification outcome for a command.
type Decision int

const (
	// Sandboxed indicates nothing is known about the command; if it is
	// approved at all, it must run inside the sandbox. It is the zero
	// value, so an uninitialized ClassifyResult defaults to the safest
	// decision.
	Sandboxed Decision = iota

	// Auto indicates the command is a known-safe read-only operation and
	// may be auto-approved at any policy level (still sandboxed).
	Auto

	// Escalated indicates the command is destructive or sensitive and
	// requires user approval regardless of policy level.
	Escalated

	// Forbidden indicates the command must never be executed.
	Forbidden
)

// String returns the string representation of a Decision.
func (d Decision) String() string {
	switch d {
	case Sandboxed:
		return "sandboxed"
	case Auto:
		return "auto"
	case Escalated:
		return "escalated"
	case Forbidden:
		return "forbidden"
	default:
		return unknownStr
	}
}

// ClassifyResult holds the outcome of command classification.
type ClassifyResult struct {
	// Decision is the classification decision.
	Decision Decision

	// Reason is a human-readable explanation of why this decision was made.
	Reason string

	// Rule is the identifier of the rule that matched, if any.
	Rule string
}
