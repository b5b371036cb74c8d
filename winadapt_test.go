package agentgate

import (
	"reflect"
	"testing"
)

// TestAdaptCommandWindows verifies the verb table, flag rewrites, and
// builtin wrapping on a Windows-style host.
func TestAdaptCommandWindows(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"ls", []string{"ls"}, []string{"cmd", "/c", "dir"}},
		{"ls -la drops combined flag", []string{"ls", "-la", "src"}, []string{"cmd", "/c", "dir", "src"}},
		{"ls -R maps to /s", []string{"ls", "-R"}, []string{"cmd", "/c", "dir", "/s"}},
		{"cat", []string{"cat", "file.txt"}, []string{"cmd", "/c", "type", "file.txt"}},
		{"grep is a real executable", []string{"grep", "-i", "todo", "main.go"}, []string{"findstr", "/i", "todo", "main.go"}},
		{"grep -r maps to /s", []string{"grep", "-r", "x", "."}, []string{"findstr", "/s", "x", "."}},
		{"rm plain file", []string{"rm", "file.txt"}, []string{"cmd", "/c", "del", "file.txt"}},
		{"rm -r becomes rmdir", []string{"rm", "-rf", "build"}, []string{"cmd", "/c", "rmdir", "/s", "/q", "build"}},
		{"cp", []string{"cp", "a", "b"}, []string{"cmd", "/c", "copy", "a", "b"}},
		{"mv", []string{"mv", "a", "b"}, []string{"cmd", "/c", "move", "a", "b"}},
		{"mkdir -p dropped", []string{"mkdir", "-p", "a/b"}, []string{"cmd", "/c", "mkdir", "a/b"}},
		{"pwd", []string{"pwd"}, []string{"cmd", "/c", "cd"}},
		{"which is a real executable", []string{"which", "go"}, []string{"where", "go"}},
		{"touch appends nothing", []string{"touch", "new.txt"}, []string{"cmd", "/c", "type", "nul", ">>", "new.txt"}},
		{"unmapped verb unchanged", []string{"go", "test", "./..."}, []string{"go", "test", "./..."}},
		{"empty argv", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adaptCommandFor(tt.in, "windows")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("adaptCommandFor(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// TestAdaptCommandNonWindowsIdentity verifies the adapter is a no-op on
// non-Windows hosts for all inputs.
func TestAdaptCommandNonWindowsIdentity(t *testing.T) {
	inputs := [][]string{
		{"ls", "-la"},
		{"cat", "file"},
		{"rm", "-rf", "build"},
		{"unknown", "args"},
		nil,
	}
	for _, goos := range []string{"linux", "darwin"} {
		for _, in := range inputs {
			got := adaptCommandFor(in, goos)
			if !reflect.DeepEqual(got, in) {
				t.Errorf("adaptCommandFor(%v, %q) = %v, want identity", in, goos, got)
			}
		}
	}
}

// TestHasRecursiveFlag verifies recursive-flag detection.
func TestHasRecursiveFlag(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"-rf", "dir"}, true},
		{[]string{"-r"}, true},
		{[]string{"-R"}, true},
		{[]string{"-f", "file"}, false},
		{[]string{"file"}, false},
		{[]string{"--recursive"}, false}, // long flags are not rewritten
		{nil, false},
	}
	for _, tt := range tests {
		if got := hasRecursiveFlag(tt.args); got != tt.want {
			t.Errorf("hasRecursiveFlag(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}
