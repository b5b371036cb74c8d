package agentgate

import (
	"errors"
	"strings"
	"testing"
)

// TestParseDiffSingleBlock verifies the canonical single-block document.
func TestParseDiffSingleBlock(t *testing.T) {
	doc := "------- SEARCH\nfoo()\n=======\nfoo(1)\n+++++++ REPLACE"
	blocks, err := ParseDiff(doc)
	if err != nil {
		t.Fatalf("ParseDiff() error: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(blocks))
	}
	if blocks[0].Search != "foo()" {
		t.Errorf("Search = %q, want %q", blocks[0].Search, "foo()")
	}
	if blocks[0].Replace != "foo(1)" {
		t.Errorf("Replace = %q, want %q", blocks[0].Replace, "foo(1)")
	}
}

// TestParseDiffBlockCount verifies that for balanced documents the block
// count equals the REPLACE delimiter count.
func TestParseDiffBlockCount(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want int
	}{
		{"empty", "", 0},
		{"prose only", "no markers here\njust text", 0},
		{
			"two blocks",
			"------- SEARCH\na\n=======\nb\n+++++++ REPLACE\n" +
				"------- SEARCH\nc\n=======\nd\n+++++++ REPLACE",
			2,
		},
		{
			"git-style markers",
			"<<<<<<< SEARCH\nold\n=======\nnew\n>>>>>>> REPLACE",
			1,
		},
		{
			"long marker runs",
			"---------------- SEARCH\nx\n============\ny\n++++++++++++ REPLACE",
			1,
		},
		{
			"prose between blocks",
			"Here is the edit:\n------- SEARCH\na\n=======\nb\n+++++++ REPLACE\ndone.",
			1,
		},
		{
			"multi-line block bodies",
			"------- SEARCH\nline1\nline2\n=======\nline1\nline2\nline3\n+++++++ REPLACE",
			1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks, err := ParseDiff(tt.doc)
			if err != nil {
				t.Fatalf("ParseDiff() error: %v", err)
			}
			if len(blocks) != tt.want {
				t.Errorf("len(blocks) = %d, want %d", len(blocks), tt.want)
			}
			replaces := strings.Count(tt.doc, "REPLACE")
			if len(blocks) != replaces {
				t.Errorf("block count %d != REPLACE delimiter count %d", len(blocks), replaces)
			}
		})
	}
}

// TestParseDiffUnbalanced verifies that any unbalanced delimiter ordering
// raises a ParseError.
func TestParseDiffUnbalanced(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"replace before search", "+++++++ REPLACE\n------- SEARCH\na\n=======\nb"},
		{"equals outside block", "=======\nfoo"},
		{"nested search", "------- SEARCH\n------- SEARCH\na\n=======\nb\n+++++++ REPLACE"},
		{"missing replace delimiter", "------- SEARCH\na\n=======\nb"},
		{"missing equals", "------- SEARCH\na\n+++++++ REPLACE"},
		{"duplicate equals", "------- SEARCH\na\n=======\nb\n=======\nc\n+++++++ REPLACE"},
		{"unterminated search", "------- SEARCH\na"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDiff(tt.doc)
			if err == nil {
				t.Fatal("ParseDiff() should fail")
			}
			if !errors.Is(err, ErrParse) {
				t.Errorf("error %v should wrap ErrParse", err)
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("error %v should be a *ParseError", err)
			} else if parseErr.Line <= 0 {
				t.Errorf("ParseError.Line = %d, want > 0", parseErr.Line)
			}
		})
	}
}

// TestParseDiffShortMarkers verifies that marker runs shorter than 3 are
// not treated as delimiters.
func TestParseDiffShortMarkers(t *testing.T) {
	doc := "-- SEARCH\n== x\n++ REPLACE"
	blocks, err := ParseDiff(doc)
	if err != nil {
		t.Fatalf("ParseDiff() error: %v", err)
	}
	if len(blocks) != 0 {
		t.Errorf("len(blocks) = %d, want 0", len(blocks))
	}
}

// TestParseDiffDelimiterInsideBody verifies that the equals delimiter is
// recognized inside a search body (this is what makes nesting an error
// rather than literal content).
func TestParseDiffEmptyBodies(t *testing.T) {
	doc := "------- SEARCH\n=======\nadded\n+++++++ REPLACE"
	blocks, err := ParseDiff(doc)
	if err != nil {
		t.Fatalf("ParseDiff() error: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(blocks))
	}
	if blocks[0].Search != "" {
		t.Errorf("Search = %q, want empty", blocks[0].Search)
	}
	if blocks[0].Replace != "added" {
		t.Errorf("Replace = %q, want %q", blocks[0].Replace, "added")
	}
}
