package ledger

import (
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
)

var (
	// A handwritten gap between a name and its amount is often read as a
	// period: "文正.500" becomes "文正 500".
	cjkDotBeforeDigit = regexp2.MustCompile(`([一-龥])\.(?=\d)`, regexp2.None)

	// A stray slash joining two physical lines: "文正500/惠瑛300". The slash
	// must follow a digit and precede a name, so "114 10/15" never splits.
	recordJoiningSlash = regexp2.MustCompile(`(?<=\d)\s*/\s*(?=[一-龥A-Za-z#])`, regexp2.None)
)

// preprocess applies the text-level OCR repairs and returns trimmed,
// non-empty lines with merged records split apart.
func preprocess(text string) []string {
	if fixed, err := cjkDotBeforeDigit.Replace(text, "${1} ", -1, -1); err == nil {
		text = fixed
	}

	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lines = append(lines, splitMergedRecords(line)...)
	}
	return lines
}

// splitMergedRecords splits a line at a record-joining slash when both halves
// look like records on their own (a name and a digit each).
func splitMergedRecords(line string) []string {
	if rocCompactDate.MatchString(line) {
		return []string{line}
	}

	runes := []rune(line)
	m, err := recordJoiningSlash.FindRunesMatch(runes)
	for err == nil && m != nil {
		left := strings.TrimSpace(string(runes[:m.Index]))
		right := strings.TrimSpace(string(runes[m.Index+m.Length:]))
		if looksLikeRecord(left) && looksLikeRecord(right) {
			return append([]string{left}, splitMergedRecords(right)...)
		}
		m, err = recordJoiningSlash.FindNextMatch(m)
	}
	return []string{line}
}

func looksLikeRecord(s string) bool {
	return hasLetter(s) && hasDigit(s)
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
