package agentgate

import "testing"

// TestClassifyPolicyMapping verifies the engine's decision mapping across
// policy levels.
func TestClassifyPolicyMapping(t *testing.T) {
	engine := NewEngine(nil, nil)

	tests := []struct {
		name          string
		argv          []string
		policy        ApprovalPolicy
		wantKind      ApprovalKind
		wantSandboxed bool
	}{
		{"safe verb auto-approves sandboxed", []string{"ls", "-la"}, PolicySuggest, DecisionAuto, true},
		{"unknown asks under suggest", []string{"make", "deploy"}, PolicySuggest, DecisionAsk, false},
		{"unknown asks under auto-edit", []string{"make", "deploy"}, PolicyAutoEdit, DecisionAsk, false},
		{"unknown auto-approves sandboxed under full-auto", []string{"make", "deploy"}, PolicyFullAuto, DecisionAuto, true},
		{"escalated asks even under full-auto", []string{"sudo", "make", "install"}, PolicyFullAuto, DecisionAsk, false},
		{"forbidden rejects", []string{"dd", "if=/dev/zero", "of=/dev/sda"}, PolicyFullAuto, DecisionReject, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := NewSession()
			got := engine.Classify(session, ShellCommand{Argv: tt.argv}, tt.policy)
			if got.Kind != tt.wantKind {
				t.Fatalf("Kind = %v (%s), want %v", got.Kind, got.Reason, tt.wantKind)
			}
			if got.Kind == DecisionAuto && got.Sandboxed != tt.wantSandboxed {
				t.Errorf("Sandboxed = %v, want %v", got.Sandboxed, tt.wantSandboxed)
			}
		})
	}
}

// TestClassifyDestructiveNeverUnsandboxed verifies that widening the
// policy to full-auto never yields an unsandboxed auto-approval for a
// destructive command.
func TestClassifyDestructiveNeverUnsandboxed(t *testing.T) {
	engine := NewEngine(nil, nil)
	session := NewSession()

	got := engine.Classify(session, ShellCommand{Argv: []string{"rm", "-rf", "/"}}, PolicyFullAuto)
	if got.Kind == DecisionAuto && !got.Sandboxed {
		t.Fatal("rm -rf / must never auto-approve unsandboxed")
	}
	// The built-in classifier goes further and rejects it outright.
	if got.Kind != DecisionReject {
		t.Errorf("Kind = %v, want DecisionReject", got.Kind)
	}
}

// TestClassifyMemoBypassesPolicy verifies the always-approved memo
// short-circuits classification with an unsandboxed auto-approval.
func TestClassifyMemoBypassesPolicy(t *testing.T) {
	engine := NewEngine(nil, nil)
	session := NewSession()

	before := engine.Classify(session, ShellCommand{Argv: []string{"make", "build"}}, PolicySuggest)
	if before.Kind != DecisionAsk {
		t.Fatalf("Kind before memo = %v, want DecisionAsk", before.Kind)
	}

	session.MarkAlwaysApproved("make")

	after := engine.Classify(session, ShellCommand{Argv: []string{"make", "test"}}, PolicySuggest)
	if after.Kind != DecisionAuto || after.Sandboxed {
		t.Errorf("after memo: Kind = %v Sandboxed = %v, want unsandboxed auto", after.Kind, after.Sandboxed)
	}
}

// TestClassifyFileActions verifies the fixed edit key and the auto-edit
// policy threshold.
func TestClassifyFileActions(t *testing.T) {
	engine := NewEngine(nil, nil)
	edit := FileEdit{Path: "main.go", Blocks: []Block{{Search: "a", Replace: "b"}}}

	session := NewSession()
	if got := engine.Classify(session, edit, PolicySuggest); got.Kind != DecisionAsk {
		t.Errorf("suggest: Kind = %v, want DecisionAsk", got.Kind)
	}
	if got := engine.Classify(session, edit, PolicyAutoEdit); got.Kind != DecisionAuto {
		t.Errorf("auto-edit: Kind = %v, want DecisionAuto", got.Kind)
	}

	// All file actions share one key, so approving it once covers writes
	// and deletes too.
	session.MarkAlwaysApproved(editCommandKey)
	if got := engine.Classify(session, FileDelete{Path: "x"}, PolicySuggest); got.Kind != DecisionAuto {
		t.Errorf("memoized delete: Kind = %v, want DecisionAuto", got.Kind)
	}
}

// TestResolveReview verifies the review decision mapping.
func TestResolveReview(t *testing.T) {
	engine := NewEngine(nil, nil)

	t.Run("yes proceeds without memoization", func(t *testing.T) {
		session := NewSession()
		out := engine.ResolveReview(session, "make", Review{Decision: ReviewYes})
		if !out.Proceed {
			t.Error("Proceed should be true")
		}
		if session.AlwaysApproved("make") {
			t.Error("Yes must not memoize")
		}
	})

	t.Run("always proceeds and memoizes", func(t *testing.T) {
		session := NewSession()
		out := engine.ResolveReview(session, "make", Review{Decision: ReviewAlways})
		if !out.Proceed {
			t.Error("Proceed should be true")
		}
		if !session.AlwaysApproved("make") {
			t.Error("Always must memoize the key")
		}
	})

	t.Run("explain makes no decision", func(t *testing.T) {
		out := engine.ResolveReview(NewSession(), "make", Review{Decision: ReviewExplain})
		if !out.NoDecision || out.Proceed {
			t.Errorf("outcome = %+v, want NoDecision only", out)
		}
	})

	t.Run("no-continue carries the custom note", func(t *testing.T) {
		out := engine.ResolveReview(NewSession(), "make", Review{Decision: ReviewNoContinue, Message: "use the Makefile target instead"})
		if out.Proceed || out.Stop {
			t.Errorf("outcome = %+v, want neither proceed nor stop", out)
		}
		if out.Note != "use the Makefile target instead" {
			t.Errorf("Note = %q, want custom message", out.Note)
		}
	})

	t.Run("no-continue without message uses the generic note", func(t *testing.T) {
		out := engine.ResolveReview(NewSession(), "make", Review{Decision: ReviewNoContinue})
		if out.Note != stopNote {
			t.Errorf("Note = %q, want the generic stop note", out.Note)
		}
	})

	t.Run("no-stop stops", func(t *testing.T) {
		out := engine.ResolveReview(NewSession(), "make", Review{Decision: ReviewNoStop})
		if !out.Stop || out.Note != stopNote {
			t.Errorf("outcome = %+v, want stop with generic note", out)
		}
	})

	t.Run("zero value is treated as no-stop", func(t *testing.T) {
		out := engine.ResolveReview(NewSession(), "make", Review{})
		if !out.Stop {
			t.Errorf("outcome = %+v, want stop", out)
		}
	})
}

// TestSessionMemo verifies the memo's basic bookkeeping.
func TestSessionMemo(t *testing.T) {
	s := NewSession()
	if s.ID == "" {
		t.Error("session ID should not be empty")
	}
	if s.AlwaysApproved("go") {
		t.Error("fresh session should have no approvals")
	}
	s.MarkAlwaysApproved("go")
	s.MarkAlwaysApproved("npm")
	if !s.AlwaysApproved("go") || !s.AlwaysApproved("npm") {
		t.Error("marked keys should be approved")
	}
	if got := len(s.ApprovedKeys()); got != 2 {
		t.Errorf("len(ApprovedKeys()) = %d, want 2", got)
	}
}
