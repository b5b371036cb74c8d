//go:build windows

package platform

// SandboxExecPath is the path to the macOS sandbox-exec binary.
// On Windows this variable is unused but defined so that cross-platform
// tests that reference it can compile.
var SandboxExecPath = ""

// detectPlatform returns the Windows stub. Windows has no sandbox
// enforcement mechanism; the selector downgrades to no sandbox with a
// visible warning.
func detectPlatform() Platform {
	return NewUnsupportedPlatform("windows-none")
}
