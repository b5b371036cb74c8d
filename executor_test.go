package agentgate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// TestExecutorBasic verifies a plain unsandboxed run.
func TestExecutorBasic(t *testing.T) {
	e := NewExecutor(nil, 0)
	res, err := e.Execute(context.Background(), ExecSpec{
		Argv: []string{"/bin/sh", "-c", "echo from executor"},
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got := strings.TrimSpace(res.Stdout); got != "from executor" {
		t.Errorf("Stdout = %q, want %q", got, "from executor")
	}
	if res.ExitCode != 0 || res.Sandboxed || res.Cancelled {
		t.Errorf("result = %+v, want clean unsandboxed success", res)
	}
}

// TestExecutorEmptyArgv verifies empty argv is rejected without spawning.
func TestExecutorEmptyArgv(t *testing.T) {
	e := NewExecutor(nil, 0)
	if _, err := e.Execute(context.Background(), ExecSpec{}); err == nil {
		t.Fatal("Execute() should reject empty argv")
	}
}

// TestExecutorWorkdirFallback verifies an inaccessible workdir falls back
// to the current directory instead of failing.
func TestExecutorWorkdirFallback(t *testing.T) {
	e := NewExecutor(nil, 0)
	res, err := e.Execute(context.Background(), ExecSpec{
		Argv:    []string{"/bin/sh", "-c", "pwd"},
		Workdir: "/nonexistent/path/zyx",
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

// TestExecutorWorkdirHonored verifies an accessible workdir is used.
func TestExecutorWorkdirHonored(t *testing.T) {
	dir := t.TempDir()
	e := NewExecutor(nil, 0)
	res, err := e.Execute(context.Background(), ExecSpec{
		Argv:    []string{"/bin/sh", "-c", "pwd"},
		Workdir: dir,
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	// Compare by suffix: the tempdir may resolve through symlinks.
	got := strings.TrimSpace(res.Stdout)
	if !strings.HasSuffix(got, lastPathElement(dir)) {
		t.Errorf("pwd = %q, want workdir %q", got, dir)
	}
}

func lastPathElement(p string) string {
	i := strings.LastIndexByte(p, '/')
	return p[i+1:]
}

// TestExecutorCancelSuppressesOutput verifies cancellation returns an
// empty neutral result instead of confusing partial state.
func TestExecutorCancelSuppressesOutput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	e := NewExecutor(nil, 0)
	res, err := e.Execute(ctx, ExecSpec{
		Argv: []string{"/bin/sh", "-c", "echo partial; sleep 10"},
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !res.Cancelled {
		t.Fatal("Cancelled should be true")
	}
	if res.Stdout != "" || res.Stderr != "" {
		t.Errorf("partial output not suppressed: stdout=%q stderr=%q", res.Stdout, res.Stderr)
	}
}

// TestExecutorTimeout verifies the per-run timeout kills the command and
// is not reported as a cancellation.
func TestExecutorTimeout(t *testing.T) {
	e := NewExecutor(nil, 0)
	start := time.Now()
	res, err := e.Execute(context.Background(), ExecSpec{
		Argv:    []string{"/bin/sh", "-c", "sleep 10"},
		Timeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout did not kill the command (took %v)", elapsed)
	}
	if res.Cancelled {
		t.Error("a timeout is not a caller cancellation")
	}
	if res.ExitCode == 0 {
		t.Error("timed-out command should not report success")
	}
}

// TestExecutorRepetitionGuard verifies the third identical submission is
// short-circuited with a diagnostic exit-1 result.
func TestExecutorRepetitionGuard(t *testing.T) {
	e := NewExecutor(nil, 0)
	argv := []string{"/bin/sh", "-c", "echo retry"}

	for i := 0; i < 2; i++ {
		if _, err := e.Execute(context.Background(), ExecSpec{Argv: argv}); err != nil {
			t.Fatalf("run %d error: %v", i+1, err)
		}
	}

	res, err := e.Execute(context.Background(), ExecSpec{Argv: argv})
	if !errors.Is(err, ErrRepetitionGuard) {
		t.Fatalf("error = %v, want ErrRepetitionGuard", err)
	}
	if res == nil || res.ExitCode != 1 {
		t.Fatalf("result = %+v, want diagnostic exit code 1", res)
	}
	if res.Stderr == "" {
		t.Error("diagnostic stderr should not be empty")
	}

	// A different command still runs.
	if _, err := e.Execute(context.Background(), ExecSpec{Argv: []string{"/bin/sh", "-c", "echo other"}}); err != nil {
		t.Errorf("different command error: %v", err)
	}
}

// TestExecutorMaxOutputOverride verifies the per-run output cap.
func TestExecutorMaxOutputOverride(t *testing.T) {
	e := NewExecutor(nil, 0)
	limit := 4
	res, err := e.Execute(context.Background(), ExecSpec{
		Argv:      []string{"/bin/sh", "-c", "echo 0123456789"},
		MaxOutput: &limit,
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(res.Stdout) > 4 || !res.Truncated {
		t.Errorf("result = %+v, want truncated to 4 bytes", res)
	}
}
