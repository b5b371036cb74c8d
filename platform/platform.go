// Package platform provides the OS-specific confinement mechanisms the
// sandbox selector chooses between: Seatbelt (sandbox-exec) on macOS and
// Landlock on Linux. Windows and other operating systems have no
// enforcement mechanism and report as unavailable.
package platform

import (
	"context"
	"os/exec"
)

// Platform is one OS confinement mechanism.
type Platform interface {
	// Name returns a human-readable identifier for this platform
	// (e.g. "darwin-seatbelt", "linux-landlock").
	Name() string

	// Available reports whether the mechanism is functional on this host.
	Available() bool

	// CheckDependencies inspects the system for required and optional
	// dependencies needed by this platform.
	CheckDependencies() *DependencyCheck

	// WrapCommand modifies an *exec.Cmd in-place to execute within the
	// platform's sandbox, applying the restrictions described by cfg.
	WrapCommand(ctx context.Context, cmd *exec.Cmd, cfg *WrapConfig) error
}

// DependencyCheck holds the result of a dependency check.
type DependencyCheck struct {
	// Errors lists critical missing dependencies that prevent sandboxing.
	Errors []string

	// Warnings lists non-critical issues that may degrade functionality.
	Warnings []string
}

// OK returns true if no critical dependency errors were found.
func (d *DependencyCheck) OK() bool {
	return len(d.Errors) == 0
}

// WrapConfig describes the desired restrictions for a single execution.
type WrapConfig struct {
	// WritableRoots lists directories where the sandboxed process may write.
	// Everything else is read-only.
	WritableRoots []string
}

// Detect returns the confinement mechanism for the current OS.
func Detect() Platform {
	return detectPlatform()
}
