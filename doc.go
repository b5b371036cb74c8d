// Package agentgate is the safety and execution substrate for autonomous
// coding agents: given an agent-proposed action (run a shell command, or
// edit/create/delete a file), it decides whether the action may run, runs
// it under the strongest available OS confinement, recovers from
// platform-specific execution failures, applies textual SEARCH/REPLACE
// patches even when the proposed search text does not match the file
// exactly, and guarantees that a batch of file edits is all-or-nothing.
//
// Key features:
//   - Approval engine with policy levels and a session-scoped
//     "always approved" command memo
//   - Sandbox selection per host (Seatbelt on macOS, Landlock on Linux)
//     that never silently downgrades
//   - Command executor with output capping, a repetition guard, and a
//     Windows recovery cascade for "file not found" failures
//   - Fuzzy SEARCH/REPLACE patch engine with a five-strategy match cascade
//   - Checkpoint manager with snapshot-before-mutate rollback
//
// Basic usage:
//
//	gate, err := agentgate.New(agentgate.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gate.Close()
//
//	res, err := gate.Dispatch(ctx, agentgate.ShellCommand{
//	    Argv: []string{"go", "test", "./..."},
//	})
package agentgate
