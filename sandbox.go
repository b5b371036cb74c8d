package agentgate

import (
	"log/slog"
	"runtime"

	"github.com/zhangyunhao116/agentgate/platform"
)

// SandboxKind identifies the OS confinement mechanism selected for a run.
type SandboxKind int

const (
	// SandboxNone runs the command without confinement.
	SandboxNone SandboxKind = iota

	// SandboxSeatbelt confines via macOS sandbox-exec.
	SandboxSeatbelt

	// SandboxLandlock confines via Linux Landlock.
	SandboxLandlock
)

// String returns the string representation of a SandboxKind.
func (k SandboxKind) String() string {
	switch k {
	case SandboxNone:
		return "none"
	case SandboxSeatbelt:
		return "seatbelt"
	case SandboxLandlock:
		return "landlock"
	default:
		return unknownStr
	}
}

// hostOS is the GOOS the selector decides for. It is a var so tests can
// exercise other hosts' selection logic.
var hostOS = runtime.GOOS

// detectPlatformFn is the function used to detect the confinement
// mechanism. It defaults to platform.Detect and can be overridden in tests.
var detectPlatformFn = platform.Detect

// SelectSandbox chooses the confinement mechanism for a run. A selection of
// anything but SandboxNone means a concrete enforcement mechanism was
// confirmed present (or, on Linux, deliberately selected without a probe).
//
// The selector never silently downgrades: if sandboxing is wanted and the
// host's mechanism is missing, it fails with SandboxUnavailableError. The
// one intentional exception is Windows, where no mechanism exists at all;
// there it downgrades to SandboxNone and logs a visible warning.
//
// allowUnsandboxed is the "environment already hardened" escape hatch: when
// set, SandboxNone is selected regardless of want.
func SelectSandbox(want, allowUnsandboxed bool, logger *slog.Logger) (SandboxKind, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !want || allowUnsandboxed {
		return SandboxNone, nil
	}

	switch hostOS {
	case "darwin":
		plat := detectPlatformFn()
		if !plat.Available() {
			check := plat.CheckDependencies()
			detail := "sandbox-exec missing or not executable"
			if len(check.Errors) > 0 {
				detail = check.Errors[0]
			}
			return SandboxNone, &SandboxUnavailableError{
				Mechanism: "sandbox-exec",
				Detail:    detail,
			}
		}
		return SandboxSeatbelt, nil
	case "linux":
		// Selected without an availability probe; enforcement fails at
		// execution time on kernels without Landlock.
		return SandboxLandlock, nil
	case "windows":
		logger.Warn("no sandbox mechanism exists on windows; running unsandboxed")
		return SandboxNone, nil
	default:
		return SandboxNone, &SandboxUnavailableError{
			Mechanism: hostOS,
			Detail:    "no sandbox mechanism exists on this operating system",
		}
	}
}

// MaybeSandboxInit checks whether the current process was re-executed as a
// Linux sandbox helper. Call this at the very beginning of main, before any
// other initialization:
//
//	func main() {
//	    if agentgate.MaybeSandboxInit() {
//	        return
//	    }
//	    // ... rest of main
//	}
//
// On non-Linux platforms it is a no-op that returns false.
func MaybeSandboxInit() bool {
	return platform.MaybeSandboxInit()
}
