package agentgate

// Platform command adaptation: a pure mapping from portable Unix-style
// command verbs to their Windows-native equivalents. The executor's
// recovery cascade uses it when a portable verb fails with a "not found"
// class error on Windows; callers may also invoke it directly.

// winVerb describes the Windows-native rendering of one portable verb.
type winVerb struct {
	// name is the native verb that replaces argv[0].
	name string

	// builtin marks cmd.exe builtins, which are not standalone executables
	// and must be wrapped in a "cmd /c" invocation.
	builtin bool

	// flags maps portable option flags to native ones. A mapping to ""
	// drops the flag.
	flags map[string]string
}

// winVerbs is the fixed adaptation table.
var winVerbs = map[string]winVerb{
	"ls":    {name: "dir", builtin: true, flags: map[string]string{"-la": "", "-l": "", "-a": "/a", "-R": "/s"}},
	"cat":   {name: "type", builtin: true},
	"grep":  {name: "findstr", flags: map[string]string{"-i": "/i", "-n": "/n", "-r": "/s", "-v": "/v"}},
	"rm":    {name: "del", builtin: true, flags: map[string]string{"-f": "/f /q"}},
	"cp":    {name: "copy", builtin: true, flags: map[string]string{"-f": "/y"}},
	"mv":    {name: "move", builtin: true, flags: map[string]string{"-f": "/y"}},
	"mkdir": {name: "mkdir", builtin: true, flags: map[string]string{"-p": ""}},
	"rmdir": {name: "rmdir", builtin: true, flags: map[string]string{"-p": ""}},
	"pwd":   {name: "cd", builtin: true},
	"clear": {name: "cls", builtin: true},
	"which": {name: "where"},
	"echo":  {name: "echo", builtin: true},
}

// AdaptCommand maps portable verbs in argv to their host-native equivalents.
// On non-Windows hosts, or when argv[0] has no mapping, the input is
// returned unchanged.
func AdaptCommand(argv []string) []string {
	return adaptCommandFor(argv, hostOS)
}

// adaptCommandFor is AdaptCommand with the host OS as an explicit parameter.
func adaptCommandFor(argv []string, goos string) []string {
	if goos != "windows" || len(argv) == 0 {
		return argv
	}

	verb := baseCommand(argv[0])

	// "rm -r" deletes a directory tree; del only handles files. Rewrite to
	// rmdir /s /q before consulting the general table.
	if verb == "rm" && hasRecursiveFlag(argv[1:]) {
		out := []string{"cmd", "/c", "rmdir", "/s", "/q"}
		for _, a := range argv[1:] {
			if len(a) > 0 && a[0] == '-' {
				continue
			}
			out = append(out, a)
		}
		return out
	}

	// "touch" has no native verb; appending nothing to the file creates it
	// when absent and leaves existing content alone.
	if verb == "touch" && len(argv) >= 2 {
		out := []string{"cmd", "/c", "type", "nul", ">>"}
		return append(out, argv[1:]...)
	}

	mapped, ok := winVerbs[verb]
	if !ok {
		return argv
	}

	out := make([]string, 0, len(argv)+2)
	if mapped.builtin {
		out = append(out, "cmd", "/c")
	}
	out = append(out, mapped.name)
	for _, a := range argv[1:] {
		if native, known := mapped.flags[a]; known {
			if native == "" {
				continue
			}
			out = append(out, splitCommand(native)...)
			continue
		}
		out = append(out, a)
	}
	return out
}

// hasRecursiveFlag reports whether args contain an rm-style recursive flag
// (-r, -R, -rf, -fr and friends).
func hasRecursiveFlag(args []string) bool {
	for _, a := range args {
		if len(a) < 2 || a[0] != '-' || a[1] == '-' {
			continue
		}
		for _, c := range a[1:] {
			if c == 'r' || c == 'R' {
				return true
			}
		}
	}
	return false
}
