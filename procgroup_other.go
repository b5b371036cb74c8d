//go:build !darwin && !linux

package agentgate

import (
	"os/exec"
	"time"
)

// processGroupWaitDelay is the time to wait for a process to exit after the
// context's kill before giving up on pipe reads.
const processGroupWaitDelay = 3 * time.Second

// setupProcessGroup is a reduced version for platforms without Unix process
// groups. The default context kill (the child process only) applies;
// WaitDelay still bounds pipe reads so orphaned grandchildren cannot hang
// the caller forever.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.WaitDelay = processGroupWaitDelay
}
