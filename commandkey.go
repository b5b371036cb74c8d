package agentgate

import (
	"strconv"
	"strings"
)

// editCommandKey is the fixed approval-memo key for file mutations. An edit's
// payload (paths, search text) is never stable across retries, so all file
// actions share one key: approving "file edits" once approves the class.
const editCommandKey = "edit"

// shellWrappers are program names that indicate a shell-wrapped invocation
// of the form "<shell> -lc <script>".
var shellWrappers = map[string]struct{}{
	"sh": {}, "bash": {}, "zsh": {}, "dash": {}, "ksh": {},
}

// isShellScriptFlag reports whether a flag introduces an inline script
// argument for the wrapping shell.
func isShellScriptFlag(flag string) bool {
	switch flag {
	case "-c", "-lc", "-cl", "-l":
		return strings.Contains(flag, "c")
	}
	return false
}

// DeriveCommandKey normalizes argv into the key used for the session's
// "always approved" memo. Two invocations of the same kind of operation map
// to the same key even when volatile payloads differ.
//
// For a shell-wrapped invocation ("<shell> -lc <script>") the key is the
// first whitespace token of the script. For direct invocations it is the
// first argv token. If no token is extractable the full argv serialization
// is used. The function is total: it never fails.
func DeriveCommandKey(argv []string) string {
	if len(argv) == 0 {
		return ""
	}

	// Shell-wrapped: sh -lc "<script>".
	if len(argv) >= 3 {
		if _, ok := shellWrappers[baseCommand(argv[0])]; ok && isShellScriptFlag(argv[1]) {
			script := strings.TrimSpace(argv[2])
			if tok := firstToken(script); tok != "" {
				return tok
			}
			return serializeArgv(argv)
		}
	}

	if tok := firstToken(argv[0]); tok != "" {
		return tok
	}
	return serializeArgv(argv)
}

// firstToken returns the first whitespace-delimited token of s, or "".
func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// serializeArgv renders argv into one normalized string, quoting arguments
// that contain whitespace or quotes so boundaries survive.
func serializeArgv(argv []string) string {
	parts := make([]string, 0, len(argv))
	for _, a := range argv {
		if strings.ContainsAny(a, " \t\n\"\\") {
			parts = append(parts, strconv.Quote(a))
		} else {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}
