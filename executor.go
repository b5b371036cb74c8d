package agentgate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/zhangyunhao116/agentgate/platform"
)

// ExecSpec describes one command run.
type ExecSpec struct {
	// Argv is the command and its arguments. Must be non-empty.
	Argv []string

	// Workdir is the working directory. If it is empty or inaccessible the
	// executor falls back to the process's current directory and logs the
	// fallback.
	Workdir string

	// Timeout bounds the run; 0 means no timeout.
	Timeout time.Duration

	// WritableRoots are the directories the sandboxed command may write to.
	WritableRoots []string

	// Sandbox is the confinement mechanism selected for this run.
	Sandbox SandboxKind

	// MaxOutput overrides the executor's output cap for this run when
	// non-nil; 0 disables the cap.
	MaxOutput *int
}

// Executor spawns commands, enforces timeout and cancellation, applies the
// repetition guard, and recovers from Windows "not found" failures through
// the recovery cascade.
type Executor struct {
	logger    *slog.Logger
	maxOutput int
	guard     *repetitionGuard
}

// NewExecutor creates an Executor. maxOutput limits captured stdout/stderr
// per stream; 0 means no limit. A nil logger uses slog.Default().
func NewExecutor(logger *slog.Logger, maxOutput int) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		logger:    logger,
		maxOutput: maxOutput,
		guard:     newRepetitionGuard(),
	}
}

// Execute runs the command described by spec.
//
// A non-zero exit code is not an executor-level error; it is reported in
// the result and callers decide escalation. When ctx is cancelled the
// partial output is suppressed and an empty neutral result is returned
// with Cancelled set; the spawned process group is killed, not orphaned.
//
// When the repetition guard trips, Execute returns a diagnostic result
// with exit code 1 alongside an error wrapping ErrRepetitionGuard, without
// spawning a process.
func (e *Executor) Execute(ctx context.Context, spec ExecSpec) (*ExecResult, error) {
	if len(spec.Argv) == 0 {
		return nil, fmt.Errorf("agentgate: execute: empty argv")
	}

	serialized := serializeArgv(spec.Argv)
	if err := e.guard.Check(serialized); err != nil {
		e.logger.Warn("repetition guard tripped", "command", serialized)
		return &ExecResult{ExitCode: 1, Stderr: err.Error()}, err
	}

	workdir := e.resolveWorkdir(spec.Workdir)
	sandboxed := spec.Sandbox != SandboxNone
	maxOutput := e.maxOutput
	if spec.MaxOutput != nil {
		maxOutput = *spec.MaxOutput
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = workdir
	if sandboxed {
		wrapCfg := &platform.WrapConfig{WritableRoots: spec.WritableRoots}
		if err := detectPlatformFn().WrapCommand(runCtx, cmd, wrapCfg); err != nil {
			return nil, fmt.Errorf("agentgate: wrap command: %w", err)
		}
	}

	res, err := execHelper(cmd, maxOutput, sandboxed)
	if ctx.Err() == context.Canceled {
		// The caller gave up on this run. Partial output from a killed
		// process is more confusing than helpful, so return a neutral
		// result instead.
		e.logger.Info("execution cancelled", "command", serialized)
		return &ExecResult{Cancelled: true, Sandboxed: sandboxed}, nil
	}

	if hostOS == "windows" && isNotFoundFailure(res, err) {
		if recovered := e.recover(runCtx, spec.Argv, workdir, maxOutput); recovered != nil {
			return recovered, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("agentgate: execute %q: %w", spec.Argv[0], err)
	}
	return res, nil
}

// resolveWorkdir validates the requested workdir and falls back to the
// current directory when it is missing or not a directory.
func (e *Executor) resolveWorkdir(workdir string) string {
	if workdir == "" {
		return ""
	}
	info, err := os.Stat(workdir)
	if err == nil && info.IsDir() {
		return workdir
	}
	cwd, cwdErr := os.Getwd()
	if cwdErr != nil {
		cwd = ""
	}
	e.logger.Warn("workdir inaccessible, falling back to current directory",
		"workdir", workdir, "fallback", cwd)
	return cwd
}

// recover runs the recovery cascade and returns the first successful
// result, or nil when every strategy failed or did not apply.
func (e *Executor) recover(ctx context.Context, argv []string, workdir string, maxOutput int) *ExecResult {
	for _, strat := range recoveryStrategies {
		plan, ok := strat.plan(argv)
		if !ok {
			continue
		}
		res, err := e.runPlan(ctx, plan, workdir, maxOutput)
		if err != nil || res == nil {
			continue
		}
		if res.ExitCode != 0 || isNotFoundFailure(res, nil) {
			continue
		}
		e.logger.Info("recovered from not-found failure",
			"strategy", strat.name, "command", serializeArgv(argv))
		res.RecoveredBy = strat.name
		return res
	}
	return nil
}

// runPlan carries out one strategy's plan.
func (e *Executor) runPlan(ctx context.Context, plan recoveryPlan, workdir string, maxOutput int) (*ExecResult, error) {
	switch {
	case len(plan.ReadFiles) > 0:
		return e.readFiles(plan.ReadFiles, workdir, maxOutput)
	case plan.ListDir != "":
		argv := []string{"cmd", "/c", "dir", plan.ListDir}
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = workdir
		return execHelper(cmd, maxOutput, false)
	case len(plan.Argv) > 0:
		cmd := exec.CommandContext(ctx, plan.Argv[0], plan.Argv[1:]...)
		cmd.Dir = workdir
		return execHelper(cmd, maxOutput, false)
	default:
		return nil, nil
	}
}

// readFiles answers a read verb in-process, concatenating file contents the
// way cat does.
func (e *Executor) readFiles(paths []string, workdir string, maxOutput int) (*ExecResult, error) {
	start := time.Now()
	var out strings.Builder
	for _, p := range paths {
		full := p
		if workdir != "" && !os.IsPathSeparator(p[0]) && !strings.Contains(p, ":") {
			full = workdir + string(os.PathSeparator) + p
		}
		data, err := os.ReadFile(full)
		if err != nil {
			// Retry with the path as given before giving up on this plan.
			data, err = os.ReadFile(p)
			if err != nil {
				return nil, err
			}
		}
		out.Write(data)
	}
	stdout := out.String()
	truncated := false
	if maxOutput > 0 && len(stdout) > maxOutput {
		stdout = stdout[:maxOutput]
		truncated = true
	}
	return &ExecResult{
		Stdout:    stdout,
		Duration:  time.Since(start),
		Truncated: truncated,
	}, nil
}
