package agentgate

import "testing"

// TestDeriveCommandKey verifies key derivation for shell-wrapped, direct,
// and degenerate invocations.
func TestDeriveCommandKey(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want string
	}{
		{"direct", []string{"git", "status"}, "git"},
		{"direct with path", []string{"/usr/local/bin/go", "test"}, "/usr/local/bin/go"},
		{"shell wrapped", []string{"bash", "-lc", "npm install react"}, "npm"},
		{"shell wrapped -c", []string{"sh", "-c", "cargo build --release"}, "cargo"},
		{"shell wrapped leading spaces", []string{"zsh", "-lc", "  make all"}, "make"},
		{"shell without script flag", []string{"bash", "script.sh"}, "bash"},
		{"empty argv", nil, ""},
		{"empty script falls back to serialization", []string{"sh", "-c", "   "}, `sh -c "   "`},
		{"volatile payloads share a key", []string{"bash", "-lc", "npm run build-1234"}, "npm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveCommandKey(tt.argv); got != tt.want {
				t.Errorf("DeriveCommandKey(%v) = %q, want %q", tt.argv, got, tt.want)
			}
		})
	}
}

// TestDeriveCommandKeyStable verifies the invariant that two invocations of
// the same kind of operation map to the same key.
func TestDeriveCommandKeyStable(t *testing.T) {
	a := DeriveCommandKey([]string{"bash", "-lc", "go test ./pkg/one"})
	b := DeriveCommandKey([]string{"bash", "-lc", "go build ./cmd/other"})
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
}

// TestSerializeArgv verifies quoting of whitespace-bearing arguments.
func TestSerializeArgv(t *testing.T) {
	tests := []struct {
		argv []string
		want string
	}{
		{[]string{"echo", "hello"}, "echo hello"},
		{[]string{"echo", "hello world"}, `echo "hello world"`},
		{[]string{"grep", `say "hi"`}, `grep "say \"hi\""`},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := serializeArgv(tt.argv); got != tt.want {
			t.Errorf("serializeArgv(%v) = %q, want %q", tt.argv, got, tt.want)
		}
	}
}
