package agentgate

import (
	"sync"
	"time"
)

const (
	// repetitionWindowSize bounds how many recent commands the guard keeps.
	repetitionWindowSize = 10

	// repetitionWindowSpan is how far back the guard looks for repeats.
	repetitionWindowSpan = 60 * time.Second

	// repetitionThreshold is the occurrence count that trips the guard.
	repetitionThreshold = 3
)

// repetitionGuard stops infinite retry loops: it keeps a bounded sliding
// window of recently submitted commands and short-circuits a command that
// repeats too often, instead of spawning yet another doomed process.
type repetitionGuard struct {
	mu      sync.Mutex
	entries []repetitionEntry

	// now is a hook for tests; defaults to time.Now.
	now func() time.Time
}

type repetitionEntry struct {
	command string
	at      time.Time
}

func newRepetitionGuard() *repetitionGuard {
	return &repetitionGuard{now: time.Now}
}

// Check records the serialized command and returns a *RepetitionError when
// it is the repetitionThreshold-th identical submission within the window.
// A different command never trips the guard, no matter how full the window is.
func (g *repetitionGuard) Check(command string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-repetitionWindowSpan)

	// Drop entries that fell out of the time window, then record the
	// current submission.
	kept := g.entries[:0]
	for _, e := range g.entries {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	g.entries = append(kept, repetitionEntry{command: command, at: now})
	if len(g.entries) > repetitionWindowSize {
		g.entries = g.entries[len(g.entries)-repetitionWindowSize:]
	}

	count := 0
	for _, e := range g.entries {
		if e.command == command {
			count++
		}
	}
	if count >= repetitionThreshold {
		return &RepetitionError{
			Command: command,
			Count:   count,
			Window:  repetitionWindowSpan,
		}
	}
	return nil
}

// Reset clears the window. Used when a session starts over.
func (g *repetitionGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = nil
}
