package agentgate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestCheckpointRoundTrip verifies the core property: rollback restores
// every touched file to its exact pre-batch bytes and deletes every file
// that did not exist beforehand.
func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	edited := filepath.Join(dir, "edited.txt")
	deleted := filepath.Join(dir, "deleted.txt")
	created := filepath.Join(dir, "created.txt")

	editedBefore := []byte("line one\nline two\n")
	deletedBefore := []byte("doomed content")
	if err := os.WriteFile(edited, editedBefore, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(deleted, deletedBefore, 0o600); err != nil {
		t.Fatal(err)
	}

	store := NewCheckpointStore(0)
	id, _, err := store.ApplyBatch([]Action{
		FileEdit{Path: edited, Blocks: []Block{{Search: "line two", Replace: "line 2"}}},
		FileDelete{Path: deleted},
		FileWrite{Path: created, Text: "brand new"},
	}, "round trip")
	if err != nil {
		t.Fatalf("ApplyBatch() error: %v", err)
	}

	// The batch is applied.
	if data, _ := os.ReadFile(edited); !strings.Contains(string(data), "line 2") {
		t.Errorf("edit not applied: %q", data)
	}
	if _, err := os.Stat(deleted); !os.IsNotExist(err) {
		t.Error("delete not applied")
	}
	if _, err := os.Stat(created); err != nil {
		t.Error("create not applied")
	}

	if err := store.Rollback(id); err != nil {
		t.Fatalf("Rollback() error: %v", err)
	}

	if data, _ := os.ReadFile(edited); string(data) != string(editedBefore) {
		t.Errorf("edited file = %q, want pre-batch bytes %q", data, editedBefore)
	}
	if data, _ := os.ReadFile(deleted); string(data) != string(deletedBefore) {
		t.Errorf("deleted file = %q, want restored bytes %q", data, deletedBefore)
	}
	if _, err := os.Stat(created); !os.IsNotExist(err) {
		t.Error("created file should be removed by rollback")
	}
}

// TestApplyBatchRollsBackOnFailure verifies all-or-nothing: a failure in
// the middle of the batch undoes the earlier operations and propagates the
// triggering error.
func TestApplyBatchRollsBackOnFailure(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.txt")
	if err := os.WriteFile(first, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewCheckpointStore(0)
	_, _, err := store.ApplyBatch([]Action{
		FileEdit{Path: first, Blocks: []Block{{Search: "original", Replace: "mutated"}}},
		FileEdit{Path: first, Blocks: []Block{{Search: "no such text", Replace: "x"}}},
	}, "failing batch")
	if err == nil {
		t.Fatal("ApplyBatch() should propagate the failing edit's error")
	}
	if !errors.Is(err, ErrSearchNotFound) {
		t.Errorf("error = %v, want the patch engine's ErrSearchNotFound", err)
	}

	if data, _ := os.ReadFile(first); string(data) != "original" {
		t.Errorf("file = %q, want pre-batch content restored", data)
	}
}

// TestApplyBatchReportsMissingParent verifies a write into a nonexistent
// directory names the first missing path component in its error.
func TestApplyBatchReportsMissingParent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a", "b", "notes.txt")

	store := NewCheckpointStore(0)
	_, _, err := store.ApplyBatch([]Action{
		FileWrite{Path: target, Text: "orphan"},
	}, "missing parent")
	if err == nil {
		t.Fatal("ApplyBatch() should fail when the parent directory is missing")
	}
	if want := filepath.Join(dir, "a"); !strings.Contains(err.Error(), want+" does not exist") {
		t.Errorf("error %q should name the first missing component %q", err, want)
	}
}

// TestCheckpointEviction verifies the bounded history evicts oldest-first.
func TestCheckpointEviction(t *testing.T) {
	dir := t.TempDir()
	store := NewCheckpointStore(3)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := store.Create("cp", []string{filepath.Join(dir, "f")})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	history := store.List()
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}
	// The two oldest are gone.
	for _, old := range ids[:2] {
		if _, err := store.Get(old); !errors.Is(err, ErrCheckpointNotFound) {
			t.Errorf("Get(%s) = %v, want ErrCheckpointNotFound", old, err)
		}
	}
	// The newest survives.
	if _, err := store.Get(ids[4]); err != nil {
		t.Errorf("Get(newest) error: %v", err)
	}
}

// TestCheckpointIDFormat verifies the opaque id shape.
func TestCheckpointIDFormat(t *testing.T) {
	id := newCheckpointID()
	parts := strings.Split(id, "-")
	if len(parts) != 3 || parts[0] != "checkpoint" {
		t.Fatalf("id = %q, want checkpoint-<millis>-<random>", id)
	}
	if len(parts[2]) != 9 {
		t.Errorf("random suffix %q should be 9 characters", parts[2])
	}
	if id == newCheckpointID() {
		t.Error("consecutive ids should differ")
	}
}

// TestRollbackUnknownID verifies the not-found error.
func TestRollbackUnknownID(t *testing.T) {
	store := NewCheckpointStore(0)
	if err := store.Rollback("checkpoint-0-zzzzzzzzz"); !errors.Is(err, ErrCheckpointNotFound) {
		t.Errorf("Rollback() = %v, want ErrCheckpointNotFound", err)
	}
}

// TestRollbackBestEffort verifies per-file failures do not abort the rest
// of the restoration.
func TestRollbackBestEffort(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	bad := filepath.Join(dir, "gone", "bad.txt")
	if err := os.WriteFile(good, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewCheckpointStore(0)
	// Snapshot a path whose parent directory will not exist at rollback
	// time alongside a healthy one.
	if err := os.MkdirAll(filepath.Dir(bad), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("unlucky"), 0o644); err != nil {
		t.Fatal(err)
	}
	id, err := store.Create("best effort", []string{good, bad})
	if err != nil {
		t.Fatal(err)
	}

	// Mutate both, then make the second unrestorable.
	if err := os.WriteFile(good, []byte("mutated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Dir(bad)); err != nil {
		t.Fatal(err)
	}

	err = store.Rollback(id)
	if !errors.Is(err, ErrRollbackPartial) {
		t.Fatalf("Rollback() = %v, want ErrRollbackPartial", err)
	}
	var rb *RollbackError
	if !errors.As(err, &rb) {
		t.Fatalf("error %v should be a *RollbackError", err)
	}
	if _, ok := rb.Failures[bad]; !ok {
		t.Errorf("Failures = %v, want entry for %q", rb.Failures, bad)
	}

	// The healthy file was still restored.
	if data, _ := os.ReadFile(good); string(data) != "keep me" {
		t.Errorf("good file = %q, want restored despite the partial failure", data)
	}
}

// TestRecordWithoutActiveCheckpoint verifies Record is a safe no-op.
func TestRecordWithoutActiveCheckpoint(t *testing.T) {
	store := NewCheckpointStore(0)
	store.Record(OpCreate, "/tmp/x") // must not panic
	if got := len(store.List()); got != 0 {
		t.Errorf("history length = %d, want 0", got)
	}
}
