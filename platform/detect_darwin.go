//go:build darwin

package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// SandboxExecPath is the path to the macOS sandbox-exec binary.
// This is a var (not const) so tests can temporarily override it to simulate
// a missing sandbox-exec binary.
var SandboxExecPath = "/usr/bin/sandbox-exec"

// detectPlatform returns the macOS Seatbelt platform.
func detectPlatform() Platform {
	return &seatbeltPlatform{}
}

// seatbeltPlatform confines processes via sandbox-exec with a generated
// Seatbelt (SBPL) profile.
type seatbeltPlatform struct{}

func (p *seatbeltPlatform) Name() string { return "darwin-seatbelt" }

// Available reports whether sandbox-exec exists and is executable.
func (p *seatbeltPlatform) Available() bool {
	info, err := os.Stat(SandboxExecPath)
	if err != nil {
		return false
	}
	return info.Mode()&0111 != 0
}

func (p *seatbeltPlatform) CheckDependencies() *DependencyCheck {
	check := &DependencyCheck{}
	info, err := os.Stat(SandboxExecPath)
	switch {
	case err != nil:
		check.Errors = append(check.Errors, fmt.Sprintf("sandbox-exec not found at %s: %v", SandboxExecPath, err))
	case info.Mode()&0111 == 0:
		check.Errors = append(check.Errors, fmt.Sprintf("sandbox-exec at %s is not executable", SandboxExecPath))
	}
	return check
}

// WrapCommand rewrites cmd to run under sandbox-exec with a profile that
// permits reads everywhere but writes only under the writable roots and
// the standard temporary directories.
func (p *seatbeltPlatform) WrapCommand(_ context.Context, cmd *exec.Cmd, cfg *WrapConfig) error {
	if !p.Available() {
		return fmt.Errorf("sandbox-exec not available at %s", SandboxExecPath)
	}
	profile := seatbeltProfile(cfg.WritableRoots)
	args := append([]string{SandboxExecPath, "-p", profile, "--"}, cmd.Args...)
	cmd.Path = SandboxExecPath
	cmd.Args = args
	return nil
}

// seatbeltProfile renders the SBPL profile: default-allow, then deny all
// file writes, then re-allow writes beneath each writable root and the
// temp directories.
func seatbeltProfile(writableRoots []string) string {
	var b strings.Builder
	b.WriteString("(version 1)\n")
	b.WriteString("(allow default)\n")
	b.WriteString("(deny file-write*)\n")

	roots := make([]string, 0, len(writableRoots)+2)
	roots = append(roots, writableRoots...)
	roots = append(roots, os.TempDir(), "/dev/null")
	for _, root := range roots {
		if root == "" {
			continue
		}
		fmt.Fprintf(&b, "(allow file-write* (subpath %s))\n", sbplQuote(root))
	}
	return b.String()
}

// sbplQuote renders a path as an SBPL string literal.
func sbplQuote(path string) string {
	return `"` + strings.ReplaceAll(path, `"`, `\"`) + `"`
}
