package agentgate

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/zhangyunhao116/agentgate/internal/pathutil"
)

// defaultCheckpointCap bounds the checkpoint history; the oldest checkpoint
// is evicted once the history grows past it.
const defaultCheckpointCap = 10

// OpKind classifies one logged file operation.
type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
	OpDelete
)

// String returns the string representation of an OpKind.
func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return unknownStr
	}
}

// Op is one entry of a checkpoint's operation log.
type Op struct {
	Kind OpKind
	Path string
}

// snapshot holds a file's content before the batch mutated it. A nil
// snapshot in the map means the file did not exist.
type snapshot struct {
	content []byte
	mode    os.FileMode
}

// Checkpoint captures file contents before a batch of operations so the
// batch can be undone as a unit.
type Checkpoint struct {
	// ID is an opaque identifier of the form checkpoint-<millis>-<random>.
	ID string

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time

	// Description is the caller's label for the batch.
	Description string

	snapshots  map[string]*snapshot
	appliedOps []Op
}

// Ops returns a copy of the checkpoint's operation log.
func (c *Checkpoint) Ops() []Op {
	out := make([]Op, len(c.appliedOps))
	copy(out, c.appliedOps)
	return out
}

// CheckpointStore keeps a bounded, session-scoped history of checkpoints
// and applies batches of file operations all-or-nothing.
type CheckpointStore struct {
	mu      sync.Mutex
	cap     int
	history []*Checkpoint // oldest first
	active  *Checkpoint
	logger  *slog.Logger
}

// NewCheckpointStore creates a store holding at most capacity checkpoints.
// A capacity of 0 or less uses defaultCheckpointCap.
func NewCheckpointStore(capacity int) *CheckpointStore {
	if capacity <= 0 {
		capacity = defaultCheckpointCap
	}
	return &CheckpointStore{cap: capacity, logger: slog.Default()}
}

// SetLogger replaces the store's logger. A nil logger restores the default.
func (s *CheckpointStore) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger
}

// Create synchronously snapshots the current content of every path,
// recording "did not exist" for absent ones, and makes the new checkpoint
// the active one. The snapshot is taken before any mutation of the batch.
func (s *CheckpointStore) Create(description string, paths []string) (string, error) {
	cp := &Checkpoint{
		ID:          newCheckpointID(),
		CreatedAt:   time.Now(),
		Description: description,
		snapshots:   make(map[string]*snapshot, len(paths)),
	}
	for _, p := range paths {
		if _, dup := cp.snapshots[p]; dup {
			continue
		}
		data, err := os.ReadFile(p)
		switch {
		case err == nil:
			mode := os.FileMode(0o644)
			if info, statErr := os.Stat(p); statErr == nil {
				mode = info.Mode()
			}
			cp.snapshots[p] = &snapshot{content: data, mode: mode}
		case os.IsNotExist(err):
			cp.snapshots[p] = nil
		default:
			return "", fmt.Errorf("agentgate: snapshot %s: %w", p, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, cp)
	if len(s.history) > s.cap {
		evicted := s.history[0]
		s.history = s.history[1:]
		s.logger.Debug("evicted oldest checkpoint", "id", evicted.ID)
	}
	s.active = cp
	return cp.ID, nil
}

// Record appends an operation to the active checkpoint's log. It is a
// no-op when no checkpoint is active.
func (s *CheckpointStore) Record(kind OpKind, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return
	}
	s.active.appliedOps = append(s.active.appliedOps, Op{Kind: kind, Path: path})
}

// Get returns the checkpoint with the given id.
func (s *CheckpointStore) Get(id string) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cp := range s.history {
		if cp.ID == id {
			return cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, id)
}

// List returns the checkpoint history, oldest first.
func (s *CheckpointStore) List() []*Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Checkpoint, len(s.history))
	copy(out, s.history)
	return out
}

// Rollback restores every snapshotted path to its pre-batch content, then
// deletes every path whose logged operation was a create. It is
// best-effort: per-file failures are collected and reported as a
// *RollbackError, and restoration of the remaining files still proceeds.
func (s *CheckpointStore) Rollback(id string) error {
	cp, err := s.Get(id)
	if err != nil {
		return err
	}

	failures := make(map[string]error)
	for path, snap := range cp.snapshots {
		if snap == nil {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				failures[path] = err
				s.logger.Warn("rollback: remove failed", "path", path, "error", err)
			}
			continue
		}
		if err := os.WriteFile(path, snap.content, snap.mode); err != nil {
			failures[path] = err
			s.logger.Warn("rollback: restore failed", "path", path, "error", err)
		}
	}
	for _, op := range cp.appliedOps {
		if op.Kind != OpCreate {
			continue
		}
		if _, snapped := cp.snapshots[op.Path]; snapped {
			continue // already handled above
		}
		if err := os.Remove(op.Path); err != nil && !os.IsNotExist(err) {
			failures[op.Path] = err
			s.logger.Warn("rollback: remove created file failed", "path", op.Path, "error", err)
		}
	}

	if len(failures) > 0 {
		return &RollbackError{CheckpointID: id, Failures: failures}
	}
	return nil
}

// ApplyBatch creates a checkpoint over the batch's target paths, applies
// each operation in order, and rolls back on the first failure before
// propagating that operation's error. The result is an all-or-nothing
// illusion over otherwise independent writes.
//
// Only file actions are valid batch members; edits are delegated to the
// patch engine. The returned reports align with ops; entries for non-edit
// operations are nil.
func (s *CheckpointStore) ApplyBatch(ops []Action, description string) (string, []*ApplyReport, error) {
	paths := make([]string, 0, len(ops))
	for _, op := range ops {
		switch a := op.(type) {
		case FileEdit:
			paths = append(paths, a.Path)
		case FileWrite:
			paths = append(paths, a.Path)
		case FileDelete:
			paths = append(paths, a.Path)
		default:
			return "", nil, fmt.Errorf("agentgate: batch: unsupported action %s", op.Kind())
		}
	}

	id, err := s.Create(description, paths)
	if err != nil {
		return "", nil, err
	}

	reports := make([]*ApplyReport, len(ops))
	for i, op := range ops {
		report, err := s.applyOne(op)
		if err != nil {
			if rbErr := s.Rollback(id); rbErr != nil {
				s.logger.Warn("batch rollback incomplete", "checkpoint", id, "error", rbErr)
			}
			return id, nil, err
		}
		reports[i] = report
	}
	return id, reports, nil
}

// applyOne performs a single batch operation and records it.
func (s *CheckpointStore) applyOne(op Action) (*ApplyReport, error) {
	switch a := op.(type) {
	case FileEdit:
		content, err := os.ReadFile(a.Path)
		if err != nil {
			return nil, fmt.Errorf("agentgate: edit %s: %w", a.Path, err)
		}
		mutated, report, err := ApplyDiff(string(content), a.Blocks, a.ReplaceAll)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(a.Path, []byte(mutated), 0o644); err != nil {
			return nil, fmt.Errorf("agentgate: edit %s: %w", a.Path, err)
		}
		s.Record(OpUpdate, a.Path)
		return report, nil
	case FileWrite:
		kind := OpUpdate
		if _, err := os.Stat(a.Path); os.IsNotExist(err) {
			kind = OpCreate
		}
		if err := os.WriteFile(a.Path, []byte(a.Text), 0o644); err != nil {
			if missing := pathutil.FindFirstNonExistent(filepath.Dir(a.Path)); missing != "" {
				return nil, fmt.Errorf("agentgate: write %s: %w (%s does not exist)", a.Path, err, missing)
			}
			return nil, fmt.Errorf("agentgate: write %s: %w", a.Path, err)
		}
		s.Record(kind, a.Path)
		return nil, nil
	case FileDelete:
		if err := os.Remove(a.Path); err != nil {
			return nil, fmt.Errorf("agentgate: delete %s: %w", a.Path, err)
		}
		s.Record(OpDelete, a.Path)
		return nil, nil
	default:
		return nil, fmt.Errorf("agentgate: batch: unsupported action %s", op.Kind())
	}
}

// checkpointAlphabet is the base36 alphabet for the random id suffix.
const checkpointAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newCheckpointID builds an id of the form checkpoint-<epochMillis>-<random9>.
func newCheckpointID() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = checkpointAlphabet[rand.Intn(len(checkpointAlphabet))]
	}
	return "checkpoint-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + string(suffix)
}
