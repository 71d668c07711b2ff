package ledger

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// tinyArtifactPunct is the punctuation a genuine short line may contain.
const tinyArtifactPunct = ".,:;#-/×、：，"

var latinMisread = regexp.MustCompile(`^([A-Za-z]{1,3})\s?\d{1,2}$`)

// noiseFilter drops candidate lines that are OCR artifacts rather than
// ledger content. next is the following candidate line, or "" at the end.
type noiseFilter struct {
	drop func(line, next string, keywords []string) bool
	name string
}

var noiseFilters = []noiseFilter{
	{name: "tiny_artifact", drop: isTinyArtifact},
	{name: "latin_misread", drop: isLatinMisread},
	{name: "separator_rule", drop: isSeparatorRule},
}

// isTinyArtifact matches lines of three characters or fewer containing a
// symbol outside the allow-list, such as an isolated bracket.
func isTinyArtifact(line, _ string, _ []string) bool {
	if utf8.RuneCountInString(line) > 3 {
		return false
	}
	for _, r := range line {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			continue
		}
		if strings.ContainsRune(tinyArtifactPunct, r) {
			continue
		}
		return true
	}
	return false
}

// isLatinMisread matches a short mixed- or lower-case Latin word followed by
// a small number, the usual reading of an underline or ruling. All-caps
// words are kept and flagged for review by the item rules instead.
func isLatinMisread(line, _ string, keywords []string) bool {
	m := latinMisread.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	if strings.ToUpper(m[1]) == m[1] {
		return false
	}
	return !containsAny(line, keywords)
}

// isSeparatorRule matches runs of more than three CJK characters with no
// digits, which is how horizontal rules come out of OCR. Lines naming an
// expense keyword, or followed by a bare number (their amount), are kept.
func isSeparatorRule(line, next string, keywords []string) bool {
	if utf8.RuneCountInString(line) <= 3 {
		return false
	}
	for _, r := range line {
		if !unicode.Is(unicode.Han, r) {
			return false
		}
	}
	if containsAny(line, keywords) {
		return false
	}
	return !isPureNumber(next)
}

// filterNoise returns the candidate lines that survive every noise filter.
func (p *Parser) filterNoise(lines []string, keywords []string) []string {
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		next := ""
		if i+1 < len(lines) {
			next = lines[i+1]
		}

		dropped := false
		for _, f := range noiseFilters {
			if f.drop(line, next, keywords) {
				p.logger.Debug("dropped noise line", "filter", f.name, "line", line)
				dropped = true
				break
			}
		}
		if !dropped {
			out = append(out, line)
		}
	}
	return out
}
