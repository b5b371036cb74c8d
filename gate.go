package agentgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/zhangyunhao116/agentgate/internal/pathutil"
)

// Gate is the entry point: it combines the approval engine, the sandbox
// selector, the executor, the patch engine, and the checkpoint manager
// behind a single Dispatch call.
//
// A Gate processes one action at a time; Dispatch serializes concurrent
// callers.
type Gate struct {
	mu       sync.Mutex
	cfg      *Config
	logger   *slog.Logger
	engine   *Engine
	executor *Executor
	session  *Session
	closed   bool
}

// New creates a Gate from cfg. A nil cfg uses DefaultConfig(). The config
// is validated and deep-copied; later mutations by the caller have no
// effect on the running Gate.
func New(cfg *Config) (*Gate, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.clone()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	session := NewSession()
	if cfg.CheckpointCap > 0 {
		session.Checkpoints = NewCheckpointStore(cfg.CheckpointCap)
	}
	session.Checkpoints.SetLogger(logger)

	return &Gate{
		cfg:      cfg,
		logger:   logger,
		engine:   NewEngine(cfg.Classifier, logger),
		executor: NewExecutor(logger, cfg.MaxOutputBytes),
		session:  session,
	}, nil
}

// Run is a convenience for one-off commands: it creates a temporary Gate
// with FullAutoConfig, dispatches the command sandboxed, and closes the
// gate.
func Run(ctx context.Context, argv ...string) (*ActionResult, error) {
	gate, err := New(FullAutoConfig())
	if err != nil {
		return nil, err
	}
	defer func() { _ = gate.Close() }()
	return gate.Dispatch(ctx, ShellCommand{Argv: argv})
}

// Session returns the gate's session state: the always-approved command
// memo and the checkpoint history. Both live for the gate's lifetime and
// are discarded on Close.
func (g *Gate) Session() *Session {
	return g.session
}

// Close shuts the gate down. Further Dispatch calls return ErrGateClosed.
func (g *Gate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrGateClosed
	}
	g.closed = true
	return nil
}

// Dispatch decides whether action may run, then runs it: shell commands go
// through sandbox selection and the executor, file actions go through the
// checkpoint manager and the patch engine.
//
// A rejected action returns an error wrapping ErrActionRejected. A
// suspended action consults the configured Reviewer; declining returns a
// *AbortError and asking for an explanation returns ErrNoDecision.
func (g *Gate) Dispatch(ctx context.Context, action Action, opts ...Option) (*ActionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrGateClosed
	}

	var call callOptions
	for _, opt := range opts {
		opt(&call)
	}

	sandboxWanted, err := g.approve(ctx, action, &call)
	if err != nil {
		return nil, err
	}

	switch a := action.(type) {
	case ShellCommand:
		return g.runShell(ctx, a, &call, sandboxWanted)
	case FileEdit, FileWrite, FileDelete:
		return g.runFileBatch([]Action{action}, &call)
	default:
		return nil, fmt.Errorf("%w: unrecognized action variant", ErrActionRejected)
	}
}

// DispatchBatch applies a batch of file actions all-or-nothing under one
// checkpoint. Shell commands are not valid batch members. The batch is
// approved as a single file-mutation, since every file action shares one
// command key.
func (g *Gate) DispatchBatch(ctx context.Context, ops []Action, opts ...Option) (*ActionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrGateClosed
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrActionRejected)
	}
	for _, op := range ops {
		if op.Kind() == ActionShell {
			return nil, fmt.Errorf("%w: shell commands are not valid batch members", ErrActionRejected)
		}
	}

	var call callOptions
	for _, opt := range opts {
		opt(&call)
	}

	if _, err := g.approve(ctx, ops[0], &call); err != nil {
		return nil, err
	}
	return g.runFileBatch(ops, &call)
}

// Rollback restores every file touched by the identified checkpoint to its
// pre-batch content.
func (g *Gate) Rollback(checkpointID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrGateClosed
	}
	return g.session.Checkpoints.Rollback(checkpointID)
}

// approve runs the approval round for an action and reports whether the
// eventual run must be sandboxed. User-approved runs are unsandboxed; the
// user decided the command is trusted.
func (g *Gate) approve(ctx context.Context, action Action, call *callOptions) (bool, error) {
	decision := g.engine.Classify(g.session, action, g.cfg.Policy)
	g.logger.Debug("action classified",
		"kind", action.Kind().String(),
		"decision", decision.Kind.String(),
		"reason", decision.Reason)

	switch decision.Kind {
	case DecisionReject:
		return false, fmt.Errorf("%w: %s", ErrActionRejected, decision.Reason)
	case DecisionAuto:
		return decision.Sandboxed, nil
	default: // DecisionAsk
		reviewer := g.cfg.Reviewer
		if call.reviewer != nil {
			reviewer = call.reviewer
		}
		if reviewer == nil {
			return false, &AbortError{Note: "approval required but no reviewer is configured"}
		}

		review, err := reviewer(ctx, ReviewRequest{
			Action:  action,
			Command: describeAction(action),
			Reason:  decision.Reason,
		})
		if err != nil {
			return false, fmt.Errorf("agentgate: reviewer: %w", err)
		}

		outcome := g.engine.ResolveReview(g.session, decision.Key, review)
		switch {
		case outcome.Proceed:
			return false, nil
		case outcome.NoDecision:
			return false, ErrNoDecision
		default:
			return false, &AbortError{Note: outcome.Note}
		}
	}
}

// runShell selects the sandbox and executes the command.
func (g *Gate) runShell(ctx context.Context, cmd ShellCommand, call *callOptions, sandboxWanted bool) (*ActionResult, error) {
	kind, err := SelectSandbox(sandboxWanted, g.cfg.AllowUnsandboxed, g.logger)
	if err != nil {
		return nil, err
	}

	workdir := cmd.Workdir
	if call.workdir != "" {
		workdir = call.workdir
	}
	timeout := cmd.Timeout
	if call.timeout > 0 {
		timeout = call.timeout
	}
	roots := append([]string(nil), g.cfg.WritableRoots...)
	roots = append(roots, cmd.WritableRoots...)
	roots = append(roots, call.writableRoots...)

	spec := ExecSpec{
		Argv:          cmd.Argv,
		Workdir:       workdir,
		Timeout:       timeout,
		WritableRoots: roots,
		Sandbox:       kind,
		MaxOutput:     call.maxOutputBytes,
	}
	res, err := g.executor.Execute(ctx, spec)
	if err != nil {
		if errors.Is(err, ErrRepetitionGuard) && res != nil {
			return &ActionResult{
				Output:   res.Stderr,
				Metadata: metadataFor(res),
				Exec:     res,
			}, err
		}
		return nil, err
	}

	if g.cfg.AskOnSandboxedFailure && kind != SandboxNone && res.ExitCode != 0 && !res.Cancelled {
		retried, rerr := g.askUnsandboxedRetry(ctx, cmd, call, res, spec)
		if rerr != nil {
			return nil, rerr
		}
		if retried != nil {
			res = retried
		}
	}

	return &ActionResult{
		Output:   combineOutput(res),
		Metadata: metadataFor(res),
		Exec:     res,
	}, nil
}

// askUnsandboxedRetry runs a fresh approval round after a sandboxed run
// failed and, only when the user approves, retries the command unsandboxed.
// It returns nil when the retry was declined or no reviewer is available,
// in which case the caller keeps the sandboxed failure.
func (g *Gate) askUnsandboxedRetry(ctx context.Context, cmd ShellCommand, call *callOptions, failed *ExecResult, spec ExecSpec) (*ExecResult, error) {
	reviewer := g.cfg.Reviewer
	if call.reviewer != nil {
		reviewer = call.reviewer
	}
	if reviewer == nil {
		return nil, nil
	}

	review, err := reviewer(ctx, ReviewRequest{
		Action:  cmd,
		Command: describeAction(cmd),
		Reason:  fmt.Sprintf("sandboxed run exited with code %d; approve an unsandboxed retry", failed.ExitCode),
	})
	if err != nil {
		return nil, fmt.Errorf("agentgate: reviewer: %w", err)
	}

	outcome := g.engine.ResolveReview(g.session, DeriveCommandKey(cmd.Argv), review)
	if !outcome.Proceed {
		return nil, nil
	}

	g.logger.Info("retrying unsandboxed after approval", "command", describeAction(cmd))
	spec.Sandbox = SandboxNone
	return g.executor.Execute(ctx, spec)
}

// runFileBatch applies file actions under one checkpoint.
func (g *Gate) runFileBatch(ops []Action, call *callOptions) (*ActionResult, error) {
	for _, op := range ops {
		if err := checkTargetPath(op); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrActionRejected, err)
		}
	}

	desc := call.description
	if desc == "" {
		desc = describeBatch(ops)
	}

	id, reports, err := g.session.Checkpoints.ApplyBatch(ops, desc)
	if err != nil {
		return nil, err
	}

	var patch *ApplyReport
	blocks := 0
	for _, r := range reports {
		if r == nil {
			continue
		}
		if patch == nil {
			patch = r
		}
		blocks += r.Blocks
	}

	var out strings.Builder
	fmt.Fprintf(&out, "applied %d operation(s)", len(ops))
	if blocks > 0 {
		fmt.Fprintf(&out, " (%d edit block(s))", blocks)
	}
	fmt.Fprintf(&out, "; checkpoint %s", id)

	return &ActionResult{
		Output: out.String(),
		Patch:  patch,
	}, nil
}

// checkTargetPath rejects file actions whose existing target resolves
// through a symlink to outside its own directory.
func checkTargetPath(op Action) error {
	var path string
	switch a := op.(type) {
	case FileEdit:
		path = a.Path
	case FileWrite:
		path = a.Path
	case FileDelete:
		path = a.Path
	default:
		return nil
	}
	if path == "" {
		return fmt.Errorf("file action has empty path")
	}
	if _, err := os.Lstat(path); err != nil {
		return nil // not created yet; nothing to resolve
	}
	if _, err := pathutil.ResolveWithBoundaryCheck(path); err != nil {
		return err
	}
	return nil
}

// describeAction renders an action for a review prompt.
func describeAction(action Action) string {
	switch a := action.(type) {
	case ShellCommand:
		return serializeArgv(a.Argv)
	case FileEdit:
		return fmt.Sprintf("edit %s (%d block(s))", a.Path, len(a.Blocks))
	case FileWrite:
		return fmt.Sprintf("write %s (%d byte(s))", a.Path, len(a.Text))
	case FileDelete:
		return "delete " + a.Path
	default:
		return action.Kind().String()
	}
}

// describeBatch builds a default checkpoint description from the batch.
func describeBatch(ops []Action) string {
	if len(ops) == 1 {
		return describeAction(ops[0])
	}
	paths := make([]string, 0, len(ops))
	for _, op := range ops {
		paths = append(paths, describeAction(op))
	}
	return fmt.Sprintf("batch of %d operations: %s", len(ops), strings.Join(paths, "; "))
}

// combineOutput merges captured stdout and stderr into the caller-facing
// output payload.
func combineOutput(res *ExecResult) string {
	switch {
	case res.Stderr == "":
		return res.Stdout
	case res.Stdout == "":
		return res.Stderr
	default:
		return res.Stdout + "\n" + res.Stderr
	}
}
