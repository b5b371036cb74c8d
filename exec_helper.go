package agentgate

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
	"time"
)

// execHelper runs cmd, capturing output with size limits, and returns an
// ExecResult. It encapsulates the shared output-capture, process-group
// setup, exit-code extraction, and truncation-detection logic used by the
// executor for both the initial run and recovery retries.
//
// maxOutput limits captured stdout/stderr; 0 means no limit.
// sandboxed is recorded in the returned ExecResult.
func execHelper(cmd *exec.Cmd, maxOutput int, sandboxed bool) (*ExecResult, error) {
	var stdout, stderr bytes.Buffer
	var stdoutWriter, stderrWriter io.Writer
	stdoutWriter = &stdout
	stderrWriter = &stderr
	if maxOutput > 0 {
		stdoutWriter = &limitedWriter{buf: &stdout, limit: maxOutput}
		stderrWriter = &limitedWriter{buf: &stderr, limit: maxOutput}
	}
	cmd.Stdout = stdoutWriter
	cmd.Stderr = stderrWriter

	setupProcessGroup(cmd)

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			err = nil // non-zero exit is not a Go error
		} else {
			return nil, err
		}
	}

	truncated := false
	if maxOutput > 0 {
		if stdout.Len() >= maxOutput || stderr.Len() >= maxOutput {
			truncated = true
		}
	}

	return &ExecResult{
		ExitCode:  exitCode,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  duration,
		Sandboxed: sandboxed,
		Truncated: truncated,
	}, err
}

// limitedWriter wraps a bytes.Buffer and stops writing after limit bytes.
type limitedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil // discard but report success
	}
	if len(p) <= remaining {
		return w.buf.Write(p)
	}
	// Write only what fits, but report full length to avoid io.ErrShortWrite.
	_, err := w.buf.Write(p[:remaining])
	if err != nil {
		return 0, err
	}
	return len(p), nil
}
