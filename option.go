package agentgate

import (
	"time"
)

// Option configures a single Dispatch or DispatchBatch call.
type Option func(*callOptions)

// callOptions holds per-call configuration applied via Option functions.
type callOptions struct {
	workdir        string
	timeout        time.Duration
	writableRoots  []string
	maxOutputBytes *int
	reviewer       Reviewer
	description    string
}

// WithWorkdir sets the working directory for a single call. It overrides
// the action's own Workdir field.
func WithWorkdir(dir string) Option {
	return func(o *callOptions) {
		o.workdir = dir
	}
}

// WithTimeout sets a timeout for a single call. If the command does not
// complete within the timeout, its process group is killed.
func WithTimeout(d time.Duration) Option {
	return func(o *callOptions) {
		o.timeout = d
	}
}

// WithWritableRoots adds additional writable root directories for a single call.
func WithWritableRoots(roots ...string) Option {
	cpy := append([]string(nil), roots...)
	return func(o *callOptions) {
		o.writableRoots = append(o.writableRoots, cpy...)
	}
}

// WithMaxOutputBytes sets the maximum output size (in bytes) for a single
// call. 0 disables the limit for this call.
func WithMaxOutputBytes(n int) Option {
	return func(o *callOptions) {
		o.maxOutputBytes = &n
	}
}

// WithReviewer overrides the reviewer for a single call.
func WithReviewer(r Reviewer) Option {
	return func(o *callOptions) {
		o.reviewer = r
	}
}

// WithDescription labels the checkpoint created for a file-mutating call.
func WithDescription(desc string) Option {
	return func(o *callOptions) {
		o.description = desc
	}
}
