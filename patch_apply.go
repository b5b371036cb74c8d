package agentgate

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ApplyReport summarizes a successful diff application.
type ApplyReport struct {
	// Blocks is the number of SEARCH/REPLACE blocks applied.
	Blocks int

	// Replacements is the total number of replacements made; a broadcast
	// block counts each of its occurrences.
	Replacements int

	// Strategies records, per block, which matching strategy located the
	// search text.
	Strategies []string

	// Diff is a unified-diff preview of the overall change.
	Diff string
}

// matching strategy names, in cascade order.
const (
	strategyExact       = "exact"
	strategyEOL         = "eol-normalized"
	strategyWhitespace  = "whitespace-collapsed"
	strategyUnescape    = "escape-stripped"
	strategyKeyAnchored = "key-line-anchored"
)

// ApplyDiff applies the blocks in document order against the progressively
// mutated content. replaceAll broadcasts every block to all occurrences of
// its search text.
//
// On failure the returned error is a *NotFoundError or
// *AmbiguousMatchError whose message is user-facing diagnostic text;
// content is returned unmodified.
func ApplyDiff(content string, blocks []Block, replaceAll bool) (string, *ApplyReport, error) {
	report := &ApplyReport{}
	mutated := content

	for _, block := range blocks {
		next, strategy, count, err := applyBlock(mutated, block, replaceAll)
		if err != nil {
			return content, nil, err
		}
		mutated = next
		report.Blocks++
		report.Replacements += count
		report.Strategies = append(report.Strategies, strategy)
	}

	report.Diff = diffPreview(content, mutated)
	return mutated, report, nil
}

// applyBlock locates block.Search in content via the matching cascade and
// substitutes block.Replace. It returns the mutated content, the strategy
// that matched, and the number of replacements made.
func applyBlock(content string, block Block, replaceAll bool) (string, string, int, error) {
	search, replace := block.Search, block.Replace

	// An empty search against empty content writes the file from scratch.
	if search == "" {
		if content == "" {
			return replace, strategyExact, 1, nil
		}
		return "", "", 0, &NotFoundError{Search: search, Preview: contentPreview(content)}
	}

	// Multiple-occurrence guard, checked on the exact strategy only: fuzzy
	// strategies locate a single position by construction.
	if n := strings.Count(content, search); n > 1 {
		if replaceAll || safeBroadcast(search, replace) {
			return strings.ReplaceAll(content, search, replace), strategyExact, n, nil
		}
		return "", "", 0, &AmbiguousMatchError{Search: search, Count: n}
	}

	start, end, strategy, ok := findMatch(content, search)
	if !ok {
		return "", "", 0, &NotFoundError{
			Search:  search,
			Preview: contentPreview(content),
			Similar: similarLines(content, search),
		}
	}
	return content[:start] + replace + content[end:], strategy, 1, nil
}

// findMatch runs the matching cascade and returns the located span in the
// original content, stopping at the first strategy that succeeds.
func findMatch(content, search string) (start, end int, strategy string, ok bool) {
	if i := strings.Index(content, search); i >= 0 {
		return i, i + len(search), strategyExact, true
	}
	if s, e, ok := matchNormalizedEOL(content, search); ok {
		return s, e, strategyEOL, true
	}
	if s, e, ok := matchCollapsedWhitespace(content, search); ok {
		return s, e, strategyWhitespace, true
	}
	if s, e, ok := matchUnescaped(content, search); ok {
		return s, e, strategyUnescape, true
	}
	if s, e, ok := matchKeyLine(content, search); ok {
		return s, e, strategyKeyAnchored, true
	}
	return 0, 0, "", false
}

// matchNormalizedEOL retries the match after normalizing line endings in
// both haystack and needle, then maps the hit back to original offsets.
func matchNormalizedEOL(content, search string) (int, int, bool) {
	normContent, posMap := normalizeEOLWithMap(content)
	normSearch := strings.ReplaceAll(search, "\r\n", "\n")
	i := strings.Index(normContent, normSearch)
	if i < 0 || len(normSearch) == 0 {
		return 0, 0, false
	}
	start := posMap[i]
	end := posMap[i+len(normSearch)-1] + 1
	// Swallow a trailing \n of a CRLF pair so the replacement does not
	// leave a dangling \r.
	if end < len(content) && content[end-1] == '\r' && content[end] == '\n' {
		end++
	}
	return start, end, true
}

// normalizeEOLWithMap converts CRLF to LF and returns, for every normalized
// byte, its offset in the original string.
func normalizeEOLWithMap(s string) (string, []int) {
	var b strings.Builder
	posMap := make([]int, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
			continue
		}
		b.WriteByte(s[i])
		posMap = append(posMap, i)
	}
	return b.String(), posMap
}

// matchCollapsedWhitespace retries the match after collapsing whitespace
// runs to single spaces and trimming both sides. The hit is mapped back by
// walking the original text and counting non-space characters, which is an
// approximate inverse: repeated tokens with pathological spacing can
// mis-locate.
func matchCollapsedWhitespace(content, search string) (int, int, bool) {
	collContent, posMap := collapseWithMap(content)
	collSearch, _ := collapseWithMap(search)
	if collSearch == "" {
		return 0, 0, false
	}
	i := strings.Index(collContent, collSearch)
	if i < 0 {
		return 0, 0, false
	}
	start := posMap[i]
	end := posMap[i+len(collSearch)-1] + 1
	return start, end, true
}

// collapseWithMap collapses whitespace runs to single spaces, trims, and
// returns for every collapsed byte an offset into the original string.
func collapseWithMap(s string) (string, []int) {
	var b strings.Builder
	posMap := make([]int, 0, len(s))
	inSpace := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
			posMap = append(posMap, i-1)
		}
		inSpace = false
		b.WriteByte(c)
		posMap = append(posMap, i)
	}
	return b.String(), posMap
}

// shellEscapeReplacer strips escaping artifacts that shells introduce into
// quoted search text.
var shellEscapeReplacer = strings.NewReplacer(
	`\$`, `$`,
	`\"`, `"`,
	`\|`, `|`,
	`\(`, `(`,
	`\)`, `)`,
	`\[`, `[`,
	`\]`, `]`,
)

// matchUnescaped retries after stripping shell-escaping artifacts from the
// needle, with an EOL-normalized fallback.
func matchUnescaped(content, search string) (int, int, bool) {
	stripped := shellEscapeReplacer.Replace(search)
	if stripped == search {
		return 0, 0, false
	}
	if i := strings.Index(content, stripped); i >= 0 {
		return i, i + len(stripped), true
	}
	return matchNormalizedEOL(content, stripped)
}

// matchKeyLine is the last-resort fuzzy strategy: pick the longest search
// line containing a special character as the key line, find its trimmed
// match among the file's lines, and infer the block's span from the key
// line's position within the search block.
func matchKeyLine(content, search string) (int, int, bool) {
	searchLines := strings.Split(search, "\n")
	keyIdx := -1
	for i, l := range searchLines {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" || !hasSpecialChar(trimmed) {
			continue
		}
		if keyIdx < 0 || len(trimmed) > len(strings.TrimSpace(searchLines[keyIdx])) {
			keyIdx = i
		}
	}
	if keyIdx < 0 {
		return 0, 0, false
	}
	key := strings.TrimSpace(searchLines[keyIdx])

	contentLines := strings.Split(content, "\n")
	for i, l := range contentLines {
		if strings.TrimSpace(l) != key {
			continue
		}
		blockFirst := i - keyIdx
		blockLast := blockFirst + len(searchLines) - 1
		if blockFirst < 0 || blockLast >= len(contentLines) {
			return 0, 0, false
		}
		start := lineOffset(contentLines, blockFirst)
		end := lineOffset(contentLines, blockLast) + len(contentLines[blockLast])
		return start, end, true
	}
	return 0, 0, false
}

// lineOffset returns the byte offset of line n in lines joined by "\n".
func lineOffset(lines []string, n int) int {
	off := 0
	for i := 0; i < n; i++ {
		off += len(lines[i]) + 1
	}
	return off
}

// hasSpecialChar reports whether s contains a character that is neither
// alphanumeric nor whitespace, making the line a distinctive anchor.
func hasSpecialChar(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == ' ', c == '\t':
		default:
			return true
		}
	}
	return false
}

// safeBroadcast judges whether a block that matches multiple locations may
// be broadcast to all of them without explicit replace-all: either the
// replacement embeds the search text verbatim plus an allow-listed
// addition, or search and replace are over 80 percent similar.
func safeBroadcast(search, replace string) bool {
	if idx := strings.Index(replace, search); idx >= 0 {
		addition := replace[:idx] + replace[idx+len(search):]
		if allowedAddition(addition) {
			return true
		}
	}
	return NormalizedSimilarity(search, replace) > 0.8
}

// allowedAddition checks an addition against a small allow-list of
// known-safe broadcast patterns: header lines and import statements.
func allowedAddition(addition string) bool {
	addition = strings.Trim(addition, "\r\n")
	if addition == "" {
		return true
	}
	for _, line := range strings.Split(addition, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !isHeaderLine(line) && !isImportLine(line) {
			return false
		}
	}
	return true
}

// isHeaderLine matches "Name: value" style lines, as in HTTP or email
// headers.
func isHeaderLine(line string) bool {
	colon := strings.Index(line, ":")
	if colon <= 0 {
		return false
	}
	for _, c := range line[:colon] {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// isImportLine matches import statements across common languages.
func isImportLine(line string) bool {
	for _, prefix := range []string{"import ", "from ", "#include", "use ", "require(", "require "} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// similarLines returns up to three file lines resembling the search text's
// first substantial line, most similar first.
func similarLines(content, search string) []string {
	var target string
	for _, l := range strings.Split(search, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			target = t
			break
		}
	}
	if target == "" {
		return nil
	}

	type scored struct {
		line  string
		score float64
	}
	var candidates []scored
	seen := make(map[string]bool)
	for _, l := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		score := NormalizedSimilarity(target, trimmed)
		if score > 0.4 {
			candidates = append(candidates, scored{line: trimmed, score: score})
		}
	}
	// Insertion sort by descending score; the list is tiny.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].score > candidates[j-1].score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.line
	}
	return out
}

// contentPreview returns the opening lines of content for diagnostics.
func contentPreview(content string) string {
	const maxLines = 5
	const maxBytes = 300
	lines := strings.Split(content, "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	preview := strings.Join(lines, "\n")
	if len(preview) > maxBytes {
		preview = preview[:maxBytes]
	}
	return preview
}

// diffPreview renders a unified-diff style preview of the overall change.
func diffPreview(before, after string) string {
	if before == after {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	patches := dmp.PatchMake(before, diffs)
	return dmp.PatchToText(patches)
}

// NormalizedSimilarity returns a similarity score in [0, 1] between two
// strings: (maxLen - editDistance) / maxLen. Identical strings score 1.
func NormalizedSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return float64(maxLen-levenshtein(a, b)) / float64(maxLen)
}

// levenshtein computes the edit distance between two strings using the
// two-row dynamic programming formulation.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
