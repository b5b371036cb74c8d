package agentgate

import (
	"sync"

	"github.com/google/uuid"
)

// Session holds the process-wide, session-scoped mutable state: the
// "always approved" command-key memo and the checkpoint history. It is
// created when a session starts and discarded on process exit; nothing in
// it persists across restarts.
//
// One action is processed at a time per agent turn, so a single writer is
// assumed; the mutex keeps the state safe if a reimplementation ever
// introduces concurrent callers.
type Session struct {
	// ID uniquely identifies this session.
	ID string

	mu       sync.RWMutex
	approved map[string]struct{}

	// Checkpoints is the session's bounded checkpoint history.
	Checkpoints *CheckpointStore
}

// NewSession creates an empty session with a fresh identifier.
func NewSession() *Session {
	return &Session{
		ID:          uuid.New().String(),
		approved:    make(map[string]struct{}),
		Checkpoints: NewCheckpointStore(defaultCheckpointCap),
	}
}

// AlwaysApproved reports whether the command key was marked "always
// approved" earlier in this session.
func (s *Session) AlwaysApproved(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.approved[key]
	return ok
}

// MarkAlwaysApproved records the command key as approved for the rest of
// the session.
func (s *Session) MarkAlwaysApproved(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approved[key] = struct{}{}
}

// ApprovedKeys returns a snapshot of the always-approved command keys.
func (s *Session) ApprovedKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.approved))
	for k := range s.approved {
		keys = append(keys, k)
	}
	return keys
}
