package agentgate

import (
	"context"
	"log/slog"
)

// ApprovalPolicy is the session-wide setting controlling how much autonomy
// the agent has before requiring human confirmation. Widening the level
// widens auto-approval coverage, but unknown or destructive commands never
// widen past sandboxed execution.
type ApprovalPolicy int

const (
	// PolicySuggest requires a user decision for everything except
	// known-safe read-only commands. It is the zero value, so an
	// uninitialized policy defaults to the most conservative level.
	PolicySuggest ApprovalPolicy = iota

	// PolicyAutoEdit additionally auto-approves file mutations.
	PolicyAutoEdit

	// PolicyFullAuto additionally auto-approves unknown shell commands,
	// always sandboxed.
	PolicyFullAuto
)

// String returns the string representation of an ApprovalPolicy.
func (p ApprovalPolicy) String() string {
	switch p {
	case PolicySuggest:
		return "suggest"
	case PolicyAutoEdit:
		return "auto-edit"
	case PolicyFullAuto:
		return "full-auto"
	default:
		return unknownStr
	}
}

// ApprovalKind identifies an approval decision variant.
type ApprovalKind int

const (
	// DecisionAsk suspends the action pending a human decision. It is the
	// zero value so an uninitialized decision never runs anything.
	DecisionAsk ApprovalKind = iota

	// DecisionAuto approves the action without asking.
	DecisionAuto

	// DecisionReject refuses the action. Reject is terminal.
	DecisionReject
)

// String returns the string representation of an ApprovalKind.
func (k ApprovalKind) String() string {
	switch k {
	case DecisionAsk:
		return "ask"
	case DecisionAuto:
		return "auto-approve"
	case DecisionReject:
		return "reject"
	default:
		return unknownStr
	}
}

// ApprovalDecision is the approval engine's verdict for one proposed action.
type ApprovalDecision struct {
	// Kind is the decision variant.
	Kind ApprovalKind

	// Sandboxed applies to DecisionAuto: whether the approved command must
	// run inside the sandbox.
	Sandboxed bool

	// Reason is a human-readable explanation of the decision.
	Reason string

	// Key is the derived command key the decision was made for.
	Key string
}

// ReviewDecision is the user's answer to an approval prompt.
type ReviewDecision int

const (
	// reviewUnset is the zero value, treated as "no, stop" for safety.
	// It is unexported to prevent direct use.
	reviewUnset ReviewDecision = iota

	// ReviewYes runs the action once, unsandboxed, without memoization.
	ReviewYes

	// ReviewAlways runs the action once, unsandboxed, and approves its
	// command key for the rest of the session.
	ReviewAlways

	// ReviewNoContinue declines the action; the supplied message is
	// appended as a synthetic user turn and the conversation continues.
	ReviewNoContinue

	// ReviewNoStop declines the action and stops the agent.
	ReviewNoStop

	// ReviewExplain asks the agent to explain; no decision is made and
	// execution does not proceed.
	ReviewExplain
)

// String returns the string representation of a ReviewDecision.
func (d ReviewDecision) String() string {
	switch d {
	case reviewUnset:
		return "unset"
	case ReviewYes:
		return "yes"
	case ReviewAlways:
		return "always"
	case ReviewNoContinue:
		return "no-continue"
	case ReviewNoStop:
		return "no-stop"
	case ReviewExplain:
		return "explain"
	default:
		return unknownStr
	}
}

// Review is a user's response to a ReviewRequest.
type Review struct {
	// Decision is the user's choice.
	Decision ReviewDecision

	// Message optionally carries the user's explanation for ReviewNoContinue.
	Message string
}

// ReviewRequest describes the suspended action shown to the user.
type ReviewRequest struct {
	// Action is the proposed action awaiting a decision.
	Action Action

	// Command is the serialized command for shell actions, or a summary
	// for file actions.
	Command string

	// Reason explains why the action was escalated.
	Reason string
}

// Reviewer supplies the human decision when an action is suspended.
// The wait is unbounded at this layer; callers impose timeouts via ctx.
type Reviewer func(ctx context.Context, req ReviewRequest) (Review, error)

// stopNote is the generic synthetic user-turn note appended when the user
// declines without a custom message.
const stopNote = "The user chose not to run this command. Stop and wait for further instructions."

// Engine is the approval decision engine. It combines the safety
// classifier, the policy level, and the session's always-approved memo
// into a single verdict per proposed action.
type Engine struct {
	classifier Classifier
	logger     *slog.Logger
}

// NewEngine creates an approval engine. A nil classifier selects
// DefaultClassifier; a nil logger selects slog.Default.
func NewEngine(classifier Classifier, logger *slog.Logger) *Engine {
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{classifier: classifier, logger: logger}
}

// Classify decides how a proposed action may proceed under the given policy.
// The session's always-approved memo bypasses policy entirely: a memoized
// key auto-approves unsandboxed.
func (e *Engine) Classify(session *Session, action Action, policy ApprovalPolicy) ApprovalDecision {
	switch a := action.(type) {
	case ShellCommand:
		return e.classifyShell(session, a, policy)
	case FileEdit, FileWrite, FileDelete:
		return e.classifyFileAction(session, policy)
	default:
		// Unknown variants never run. The union is closed, so this only
		// triggers if a new variant is added without updating dispatch.
		return ApprovalDecision{
			Kind:   DecisionReject,
			Reason: "unrecognized action variant",
		}
	}
}

func (e *Engine) classifyShell(session *Session, cmd ShellCommand, policy ApprovalPolicy) ApprovalDecision {
	key := DeriveCommandKey(cmd.Argv)

	if session != nil && session.AlwaysApproved(key) {
		return ApprovalDecision{
			Kind:      DecisionAuto,
			Sandboxed: false,
			Reason:    "previously approved for this session",
			Key:       key,
		}
	}

	var result ClassifyResult
	if len(cmd.Argv) == 0 {
		result = ClassifyResult{Decision: Sandboxed, Reason: "empty argv"}
	} else {
		result = e.classifier.ClassifyArgs(cmd.Argv[0], cmd.Argv[1:])
	}

	switch result.Decision {
	case Forbidden:
		return ApprovalDecision{Kind: DecisionReject, Reason: result.Reason, Key: key}
	case Escalated:
		return ApprovalDecision{Kind: DecisionAsk, Reason: result.Reason, Key: key}
	case Auto:
		return ApprovalDecision{Kind: DecisionAuto, Sandboxed: true, Reason: result.Reason, Key: key}
	default: // Sandboxed: nothing known about the command.
		if policy == PolicyFullAuto {
			return ApprovalDecision{
				Kind:      DecisionAuto,
				Sandboxed: true,
				Reason:    "full-auto policy; unknown command runs sandboxed",
				Key:       key,
			}
		}
		return ApprovalDecision{Kind: DecisionAsk, Reason: result.Reason, Key: key}
	}
}

func (e *Engine) classifyFileAction(session *Session, policy ApprovalPolicy) ApprovalDecision {
	if session != nil && session.AlwaysApproved(editCommandKey) {
		return ApprovalDecision{
			Kind:   DecisionAuto,
			Reason: "file edits previously approved for this session",
			Key:    editCommandKey,
		}
	}
	if policy >= PolicyAutoEdit {
		return ApprovalDecision{
			Kind:   DecisionAuto,
			Reason: "policy auto-approves file mutations",
			Key:    editCommandKey,
		}
	}
	return ApprovalDecision{
		Kind:   DecisionAsk,
		Reason: "suggest policy requires approval for file mutations",
		Key:    editCommandKey,
	}
}

// ReviewOutcome is the engine's interpretation of a user's review.
type ReviewOutcome struct {
	// Proceed indicates the action may execute once, unsandboxed.
	Proceed bool

	// NoDecision indicates the user asked for an explanation; the caller
	// may re-ask with added context.
	NoDecision bool

	// Stop indicates the agent should stop after the abort.
	Stop bool

	// Note is the synthetic user-turn note appended on decline, so the
	// agent understands why its action did not run.
	Note string
}

// ResolveReview maps a user's review onto an outcome, memoizing the command
// key on ReviewAlways. An unset decision is treated as "no, stop".
func (e *Engine) ResolveReview(session *Session, key string, review Review) ReviewOutcome {
	switch review.Decision {
	case ReviewYes:
		return ReviewOutcome{Proceed: true}
	case ReviewAlways:
		if session != nil {
			session.MarkAlwaysApproved(key)
			e.logger.Debug("command key approved for session", "key", key)
		}
		return ReviewOutcome{Proceed: true}
	case ReviewExplain:
		return ReviewOutcome{NoDecision: true}
	case ReviewNoContinue:
		note := review.Message
		if note == "" {
			note = stopNote
		}
		return ReviewOutcome{Note: note}
	default: // ReviewNoStop and unset.
		return ReviewOutcome{Stop: true, Note: stopNote}
	}
}
