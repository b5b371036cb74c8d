//go:build linux

package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// SandboxExecPath is the path to the macOS sandbox-exec binary.
// On Linux this variable is unused but defined so that cross-platform tests
// that reference it can compile.
var SandboxExecPath = ""

// detectPlatform returns the Linux Landlock platform.
func detectPlatform() Platform {
	return &landlockPlatform{}
}

// landlockPlatform confines processes via kernel Landlock rules, applied in
// a re-executed copy of the current binary before it execs the real command.
type landlockPlatform struct{}

func (p *landlockPlatform) Name() string { return "linux-landlock" }

// Available reports true unconditionally: the kernel mechanism is selected
// without a runtime probe. Enforcement fails at execution time on kernels
// older than 5.13; CheckDependencies surfaces that as a warning.
func (p *landlockPlatform) Available() bool { return true }

func (p *landlockPlatform) CheckDependencies() *DependencyCheck {
	check := &DependencyCheck{}
	info := detectLandlock()
	if !info.Supported {
		check.Warnings = append(check.Warnings, "landlock not supported by this kernel (requires >= 5.13); sandboxed commands will fail at execution time")
	} else {
		check.Warnings = append(check.Warnings, fmt.Sprintf("landlock %s", info.Features))
	}
	return check
}

// WrapCommand rewrites cmd to re-exec the current binary in sandbox-init
// mode. The child applies process hardening and Landlock restrictions, then
// execs the original argv. The host program must call
// agentgate.MaybeSandboxInit at the start of main.
func (p *landlockPlatform) WrapCommand(_ context.Context, cmd *exec.Cmd, cfg *WrapConfig) error {
	if len(cmd.Args) == 0 {
		return fmt.Errorf("landlock: cannot wrap a command with empty args")
	}

	payload, err := json.Marshal(&sandboxInitConfig{
		WritableRoots: cfg.WritableRoots,
		Argv:          cmd.Args,
	})
	if err != nil {
		return fmt.Errorf("landlock: encode sandbox config: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("landlock: resolve current executable: %w", err)
	}

	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, reExecEnvKey+"="+string(payload))
	cmd.Path = self
	cmd.Args = []string{self}
	return nil
}
