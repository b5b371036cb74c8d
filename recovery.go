package agentgate

import (
	"os"
	"strings"
)

// Recovery cascade: when a command fails on Windows with a "not found"
// class error, the executor retries through an ordered list of alternative
// strategies, stopping at the first success. Each strategy is a pure
// function from the original invocation to a plan; the executor carries
// out the plan. The cascade never runs on other hosts or for other
// failure classes.

// recoveryPlan is what a strategy proposes. Exactly one field is set.
type recoveryPlan struct {
	// Argv re-runs the command with a rewritten argument vector.
	Argv []string

	// ReadFiles answers the command in-process by reading these files,
	// without spawning anything.
	ReadFiles []string

	// ListDir answers the command by running the host's native listing
	// tool over this directory ("." when the command named none).
	ListDir string
}

// recoveryStrategy proposes an alternative way to carry out argv. It
// returns false when it does not apply to this command.
type recoveryStrategy struct {
	name string
	plan func(argv []string) (recoveryPlan, bool)
}

// recoveryStrategies is the cascade, in trial order.
var recoveryStrategies = []recoveryStrategy{
	{name: "shell-wrap", plan: planShellWrap},
	{name: "adapt", plan: planAdapt},
	{name: "direct-read", plan: planDirectRead},
	{name: "native-list", plan: planNativeList},
}

// planShellWrap wraps the command in cmd.exe, which resolves builtins and
// PATHEXT extensions the direct spawn path does not.
func planShellWrap(argv []string) (recoveryPlan, bool) {
	if len(argv) == 0 || strings.EqualFold(baseCommand(argv[0]), "cmd") {
		return recoveryPlan{}, false
	}
	wrapped := append([]string{"cmd", "/c"}, argv...)
	return recoveryPlan{Argv: wrapped}, true
}

// planAdapt retries with the platform adapter's rewritten argv.
func planAdapt(argv []string) (recoveryPlan, bool) {
	adapted := adaptCommandFor(argv, "windows")
	if equalArgv(adapted, argv) {
		return recoveryPlan{}, false
	}
	return recoveryPlan{Argv: adapted}, true
}

// planDirectRead answers pure read verbs by reading the files in-process.
func planDirectRead(argv []string) (recoveryPlan, bool) {
	if len(argv) < 2 {
		return recoveryPlan{}, false
	}
	switch baseCommand(argv[0]) {
	case "cat", "type", "more":
	default:
		return recoveryPlan{}, false
	}
	files := make([]string, 0, len(argv)-1)
	for _, a := range argv[1:] {
		if len(a) > 0 && (a[0] == '-' || a[0] == '/') {
			continue
		}
		files = append(files, a)
	}
	if len(files) == 0 {
		return recoveryPlan{}, false
	}
	return recoveryPlan{ReadFiles: files}, true
}

// planNativeList answers listing verbs with the host-native listing tool.
func planNativeList(argv []string) (recoveryPlan, bool) {
	switch baseCommand(argv[0]) {
	case "ls", "dir":
	default:
		return recoveryPlan{}, false
	}
	dir := "."
	for _, a := range argv[1:] {
		if len(a) > 0 && a[0] != '-' && a[0] != '/' {
			dir = a
			break
		}
	}
	return recoveryPlan{ListDir: dir}, true
}

// isNotFoundFailure reports whether a run failed because the command or its
// target could not be found. Matches both the Go spawn error and the
// diagnostics cmd.exe and Windows tools print.
func isNotFoundFailure(res *ExecResult, err error) bool {
	if err != nil {
		msg := err.Error()
		return strings.Contains(msg, "executable file not found") ||
			strings.Contains(msg, "file does not exist") ||
			os.IsNotExist(err)
	}
	if res == nil || res.ExitCode == 0 {
		return false
	}
	stderr := strings.ToLower(res.Stderr)
	for _, marker := range []string{
		"is not recognized as an internal or external command",
		"cannot find the file",
		"cannot find the path",
		"no such file or directory",
		"command not found",
	} {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// equalArgv compares two argument vectors element-wise.
func equalArgv(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
