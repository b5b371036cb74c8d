package agentgate

import (
	"strings"
)

// Block is one SEARCH/REPLACE unit of a diff document: the text to locate
// and the text that replaces it.
type Block struct {
	Search  string
	Replace string
}

// parser states for the diff document grammar.
type parseState int

const (
	stateNone parseState = iota
	stateSearch
	stateReplace
)

// ParseDiff parses a SEARCH/REPLACE diff document into an ordered sequence
// of blocks.
//
// Grammar per block: a SEARCH delimiter ("-------" or "<<<<<<<" followed by
// the word SEARCH; the marker character may repeat 3 or more times), the
// literal search lines, a line of 3 or more "=", the literal replace lines,
// and a REPLACE delimiter ("+++++++" or ">>>>>>>" followed by the word
// REPLACE). Text outside blocks is ignored; unbalanced delimiter ordering
// is a hard *ParseError.
func ParseDiff(doc string) ([]Block, error) {
	var (
		blocks  []Block
		state   = stateNone
		search  []string
		replace []string
	)

	lines := strings.Split(doc, "\n")
	for i, line := range lines {
		lineNo := i + 1
		switch {
		case isSearchDelimiter(line):
			if state != stateNone {
				return nil, &ParseError{Line: lineNo, Msg: "SEARCH delimiter inside an open block"}
			}
			state = stateSearch
			search = search[:0]
			replace = replace[:0]
		case isEqualsDelimiter(line):
			switch state {
			case stateSearch:
				state = stateReplace
			case stateReplace:
				return nil, &ParseError{Line: lineNo, Msg: "duplicate ======= delimiter in block"}
			default:
				return nil, &ParseError{Line: lineNo, Msg: "======= delimiter outside a block"}
			}
		case isReplaceDelimiter(line):
			if state != stateReplace {
				return nil, &ParseError{Line: lineNo, Msg: "REPLACE delimiter without preceding SEARCH and ======="}
			}
			blocks = append(blocks, Block{
				Search:  strings.Join(search, "\n"),
				Replace: strings.Join(replace, "\n"),
			})
			state = stateNone
		default:
			switch state {
			case stateSearch:
				search = append(search, line)
			case stateReplace:
				replace = append(replace, line)
			}
		}
	}

	if state != stateNone {
		return nil, &ParseError{Line: len(lines), Msg: "unterminated block at end of document"}
	}
	return blocks, nil
}

// isSearchDelimiter matches "------- SEARCH" and "<<<<<<< SEARCH" with 3 or
// more marker characters.
func isSearchDelimiter(line string) bool {
	return isDelimiter(line, '-', "SEARCH") || isDelimiter(line, '<', "SEARCH")
}

// isReplaceDelimiter matches "+++++++ REPLACE" and ">>>>>>> REPLACE" with 3
// or more marker characters.
func isReplaceDelimiter(line string) bool {
	return isDelimiter(line, '+', "REPLACE") || isDelimiter(line, '>', "REPLACE")
}

// isEqualsDelimiter matches a line consisting solely of 3 or more "=".
func isEqualsDelimiter(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 3 {
		return false
	}
	for _, c := range trimmed {
		if c != '=' {
			return false
		}
	}
	return true
}

// isDelimiter matches a run of 3+ marker characters followed by the keyword.
func isDelimiter(line string, marker byte, keyword string) bool {
	trimmed := strings.TrimSpace(line)
	run := 0
	for run < len(trimmed) && trimmed[run] == marker {
		run++
	}
	if run < 3 {
		return false
	}
	rest := strings.TrimSpace(trimmed[run:])
	return rest == keyword
}
