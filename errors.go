package agentgate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors returned by the agentgate package.
var (
	// ErrParse indicates a malformed SEARCH/REPLACE diff document.
	ErrParse = errors.New("agentgate: malformed diff document")

	// ErrSearchNotFound indicates the search text could not be located
	// after every matching strategy was attempted.
	ErrSearchNotFound = errors.New("agentgate: search text not found")

	// ErrAmbiguousMatch indicates the search text occurs more than once
	// and no safe automatic broadcast was possible.
	ErrAmbiguousMatch = errors.New("agentgate: ambiguous search text")

	// ErrSandboxUnavailable indicates a mandated sandbox mechanism is
	// missing from the host.
	ErrSandboxUnavailable = errors.New("agentgate: sandbox unavailable")

	// ErrRepetitionGuard indicates the same command was submitted too many
	// times in a short window and was short-circuited without spawning.
	ErrRepetitionGuard = errors.New("agentgate: repetition guard tripped")

	// ErrRollbackPartial indicates a rollback restored some but not all files.
	ErrRollbackPartial = errors.New("agentgate: rollback partially failed")

	// ErrActionRejected indicates the approval engine refused the action.
	ErrActionRejected = errors.New("agentgate: action rejected")

	// ErrActionAborted indicates the user declined the action at review time.
	ErrActionAborted = errors.New("agentgate: action aborted by user")

	// ErrNoDecision indicates the review ended without a decision
	// (the user asked for an explanation); execution did not proceed.
	ErrNoDecision = errors.New("agentgate: no decision made")

	// ErrCheckpointNotFound indicates the requested checkpoint id is not
	// in the session's (bounded) history.
	ErrCheckpointNotFound = errors.New("agentgate: checkpoint not found")

	// ErrGateClosed indicates the gate has already been closed.
	ErrGateClosed = errors.New("agentgate: gate already closed")

	// ErrConfigInvalid indicates the provided configuration failed validation.
	ErrConfigInvalid = errors.New("agentgate: invalid configuration")
)

// ParseError is returned when a diff document violates the SEARCH/REPLACE
// grammar. It wraps ErrParse so that errors.Is(err, ErrParse) still works.
type ParseError struct {
	// Line is the 1-based line number where parsing failed.
	Line int

	// Msg describes the violation.
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: line %d: %s", ErrParse.Error(), e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// NotFoundError is returned when a block's search text cannot be located in
// the file content by any matching strategy. Its message is user-facing: a
// human or the agent itself must self-correct from it.
type NotFoundError struct {
	// Search is the search text that could not be located.
	Search string

	// Preview is an excerpt of the current file content.
	Preview string

	// Similar holds up to three file lines that resemble the search text.
	Similar []string
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	b.WriteString(ErrSearchNotFound.Error())
	b.WriteString("\n\nSearched for:\n")
	b.WriteString(indent(e.Search))
	if len(e.Similar) > 0 {
		b.WriteString("\n\nDid you mean one of these lines?\n")
		for _, s := range e.Similar {
			b.WriteString("  ")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}
	if e.Preview != "" {
		b.WriteString("\nCurrent content begins:\n")
		b.WriteString(indent(e.Preview))
	}
	return b.String()
}

func (e *NotFoundError) Unwrap() error { return ErrSearchNotFound }

// AmbiguousMatchError is returned when search text occurs multiple times and
// neither replace-all nor the similarity gate permits a broadcast.
type AmbiguousMatchError struct {
	// Search is the search text that matched multiple locations.
	Search string

	// Count is the number of occurrences found.
	Count int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%s: %d occurrences of %q; add surrounding context to make the match unique, or request replace-all",
		ErrAmbiguousMatch.Error(), e.Count, firstLine(e.Search))
}

func (e *AmbiguousMatchError) Unwrap() error { return ErrAmbiguousMatch }

// SandboxUnavailableError is returned when sandboxing was mandated but the
// host's enforcement mechanism is missing. It is always fatal; the one
// intentional exception is the Windows downgrade, which is logged instead
// of returned.
type SandboxUnavailableError struct {
	// Mechanism names the missing enforcement mechanism (e.g. "sandbox-exec").
	Mechanism string

	// Detail explains what was probed and what failed.
	Detail string
}

func (e *SandboxUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrSandboxUnavailable.Error(), e.Mechanism, e.Detail)
}

func (e *SandboxUnavailableError) Unwrap() error { return ErrSandboxUnavailable }

// RepetitionError is returned when the repetition guard short-circuits a
// command instead of spawning a process.
type RepetitionError struct {
	// Command is the serialized argv that repeated.
	Command string

	// Count is how many times it appeared inside the window.
	Count int

	// Window is the time span the guard inspected.
	Window time.Duration
}

func (e *RepetitionError) Error() string {
	return fmt.Sprintf("%s: %q submitted %d times within %s; refusing to run it again",
		ErrRepetitionGuard.Error(), e.Command, e.Count, e.Window)
}

func (e *RepetitionError) Unwrap() error { return ErrRepetitionGuard }

// RollbackError aggregates per-file restoration failures. Rollback is
// best-effort: remaining files are still restored, and the batch caller
// sees the original triggering error, not this one.
type RollbackError struct {
	// CheckpointID identifies the checkpoint being rolled back.
	CheckpointID string

	// Failures maps each path that could not be restored to its error.
	Failures map[string]error
}

func (e *RollbackError) Error() string {
	paths := make([]string, 0, len(e.Failures))
	for p := range e.Failures {
		paths = append(paths, p)
	}
	return fmt.Sprintf("%s: checkpoint %s: %d file(s) not restored: %s",
		ErrRollbackPartial.Error(), e.CheckpointID, len(e.Failures), strings.Join(paths, ", "))
}

func (e *RollbackError) Unwrap() error { return ErrRollbackPartial }

// AbortError is returned when the user declines an action at review time.
// Note carries the synthetic user-turn message appended to the conversation
// so the agent understands why its action did not run.
type AbortError struct {
	// Note is the message surfaced to the agent. If the user supplied no
	// custom message, it is a generic stop note.
	Note string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("%s: %s", ErrActionAborted.Error(), e.Note)
}

func (e *AbortError) Unwrap() error { return ErrActionAborted }

// indent prefixes every line of s with two spaces.
func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

// firstLine returns the first line of s.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
