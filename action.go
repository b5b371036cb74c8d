package agentgate

import "time"

// Action is a single agent-proposed operation. It is a closed union:
// the only implementations are ShellCommand, FileEdit, FileWrite, and
// FileDelete. Every dispatch site switches exhaustively over these four
// variants.
type Action interface {
	// Kind returns a stable identifier for the action variant.
	Kind() ActionKind

	isAction()
}

// ActionKind identifies an Action variant.
type ActionKind int

const (
	// ActionShell is a shell command execution.
	ActionShell ActionKind = iota

	// ActionEdit is a SEARCH/REPLACE edit of an existing file.
	ActionEdit

	// ActionWrite creates or overwrites a file with literal content.
	ActionWrite

	// ActionDelete removes a file.
	ActionDelete
)

// String returns the string representation of an ActionKind.
func (k ActionKind) String() string {
	switch k {
	case ActionShell:
		return "shell"
	case ActionEdit:
		return "edit"
	case ActionWrite:
		return "write"
	case ActionDelete:
		return "delete"
	default:
		return unknownStr
	}
}

// ShellCommand proposes running a command.
type ShellCommand struct {
	// Argv is the command and its arguments. Argv[0] is the program,
	// or a shell when the command is shell-wrapped (e.g. "sh -lc <script>").
	Argv []string

	// Workdir is the working directory for the command. If it does not
	// exist or is inaccessible, the executor falls back to the process's
	// current directory.
	Workdir string

	// Timeout bounds the command's wall-clock runtime. Zero means no
	// per-command timeout beyond the caller's context.
	Timeout time.Duration

	// WritableRoots lists directories the command is expected to write
	// under. It is forwarded to the safety classifier and the sandbox.
	WritableRoots []string
}

func (ShellCommand) Kind() ActionKind { return ActionShell }
func (ShellCommand) isAction()        {}

// FileEdit proposes applying SEARCH/REPLACE blocks to an existing file.
type FileEdit struct {
	// Path is the file to mutate.
	Path string

	// Blocks are applied strictly in order against the progressively
	// mutated content.
	Blocks []Block

	// ReplaceAll requests that every occurrence of each block's search
	// text be replaced, bypassing the ambiguity guard.
	ReplaceAll bool
}

func (FileEdit) Kind() ActionKind { return ActionEdit }
func (FileEdit) isAction()        {}

// FileWrite proposes creating or overwriting a file with literal content.
type FileWrite struct {
	// Path is the file to write.
	Path string

	// Text is the full new content.
	Text string
}

func (FileWrite) Kind() ActionKind { return ActionWrite }
func (FileWrite) isAction()        {}

// FileDelete proposes removing a file.
type FileDelete struct {
	// Path is the file to delete.
	Path string
}

func (FileDelete) Kind() ActionKind { return ActionDelete }
func (FileDelete) isAction()        {}
