package agentgate

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/zhangyunhao116/agentgate/internal/pathutil"
)

// defaultMaxOutputBytes limits captured stdout/stderr per stream (10 MB).
const defaultMaxOutputBytes = 10 * 1024 * 1024

// Config holds the complete configuration for a Gate.
type Config struct {
	// Policy is the session-wide approval level.
	Policy ApprovalPolicy

	// Classifier determines how shell commands are classified.
	// If nil, DefaultClassifier() is used.
	Classifier Classifier

	// Reviewer supplies the human decision when an action is suspended.
	// If nil, suspended actions are aborted with ErrActionAborted.
	Reviewer Reviewer

	// WritableRoots lists directories sandboxed commands may write to, in
	// addition to any roots supplied per action.
	WritableRoots []string

	// AllowUnsandboxed disables sandboxing entirely. It is the escape
	// hatch for environments that are already hardened (containers, CI
	// runners) where an inner sandbox adds nothing.
	AllowUnsandboxed bool

	// AskOnSandboxedFailure enables the escalation retry: when a sandboxed
	// command exits non-zero, the Reviewer is consulted with the failure as
	// context and, only on explicit approval, the command is retried
	// unsandboxed. Declining keeps the sandboxed result. Without a reviewer
	// the failed result is returned as-is.
	AskOnSandboxedFailure bool

	// MaxOutputBytes limits the size of captured stdout/stderr.
	// 0 means no limit. Defaults to defaultMaxOutputBytes (10 MB) when
	// created via DefaultConfig(). Set explicitly to 0 to disable the limit.
	MaxOutputBytes int

	// CheckpointCap bounds the checkpoint history. 0 uses the default (10).
	CheckpointCap int

	// Logger is the structured logger for operational messages such as
	// sandbox downgrade warnings, workdir fallbacks, and rollback
	// diagnostics. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with conservative defaults: suggest-only
// policy, the built-in classifier, and sandboxing enabled.
func DefaultConfig() *Config {
	return &Config{
		Policy:         PolicySuggest,
		MaxOutputBytes: defaultMaxOutputBytes,
		CheckpointCap:  defaultCheckpointCap,
	}
}

// AutoEditConfig returns a Config that auto-approves file mutations but
// still asks before unknown shell commands.
func AutoEditConfig() *Config {
	cfg := DefaultConfig()
	cfg.Policy = PolicyAutoEdit
	return cfg
}

// FullAutoConfig returns a Config that auto-approves unknown commands,
// always sandboxed. Destructive commands still escalate or are rejected.
func FullAutoConfig() *Config {
	cfg := DefaultConfig()
	cfg.Policy = PolicyFullAuto
	return cfg
}

// Validate checks the configuration for errors and returns a descriptive
// error if any field is invalid. The returned error wraps ErrConfigInvalid.
func (c *Config) Validate() error {
	var errs []string

	if c.Policy < PolicySuggest || c.Policy > PolicyFullAuto {
		errs = append(errs, "Policy: invalid value")
	}
	if c.MaxOutputBytes < 0 {
		errs = append(errs, "MaxOutputBytes: must be >= 0")
	}
	if c.CheckpointCap < 0 {
		errs = append(errs, "CheckpointCap: must be >= 0")
	}

	for i, root := range c.WritableRoots {
		if root == "" {
			errs = append(errs, fmt.Sprintf("WritableRoots[%d]: must not be empty", i))
			continue
		}
		if pathutil.ContainsNullByte(root) {
			errs = append(errs, fmt.Sprintf("WritableRoots[%d]: must not contain null bytes", i))
			continue
		}
		if !filepath.IsAbs(root) {
			if _, err := filepath.Abs(root); err != nil {
				errs = append(errs, fmt.Sprintf("WritableRoots[%d]: cannot resolve to absolute path: %v", i, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// clone returns a deep copy so later caller mutations cannot affect a
// running Gate. The Logger, Classifier, and Reviewer are shared by
// reference; implementations must be safe for reuse.
func (c *Config) clone() *Config {
	cpy := *c
	cpy.WritableRoots = append([]string(nil), c.WritableRoots...)
	return &cpy
}
