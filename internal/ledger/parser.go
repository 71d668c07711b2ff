// Package ledger turns normalized OCR text of a handwritten ledger into a
// structured record of dated items and declared aggregates.
package ledger

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/model"
)

// Parser converts ledger text into records. It holds only configuration and
// is safe for concurrent use.
type Parser struct {
	logger *slog.Logger
	cfg    Config
}

// NewParser creates a parser. A nil keyword list or an empty transfer marker
// in cfg means the built-in defaults.
func NewParser(cfg Config, logger *slog.Logger) *Parser {
	if cfg.ExpenseKeywords == nil {
		cfg.ExpenseKeywords = DefaultExpenseKeywords
	}
	if cfg.TransferMarker == "" {
		cfg.TransferMarker = DefaultTransferMarker
	}
	cfg.ExpenseKeywords = cleanKeywords(cfg.ExpenseKeywords)
	return &Parser{cfg: cfg, logger: common.OrDefault(logger)}
}

// parseState accumulates everything found while parsing one text.
type parseState struct {
	date      *string
	anomalies []model.Anomaly
	declared  model.DeclaredFigures
}

func (st *parseState) anomaly(kind model.AnomalyKind, severity model.Severity, msg string) {
	st.anomalies = append(st.anomalies, model.Anomaly{Kind: kind, Severity: severity, Message: msg})
}

// logicalLine is a candidate line after cross-line association.
type logicalLine struct {
	text string
	// mergedName is the name line joined onto a following bare number.
	mergedName string
}

// Parse extracts a ledger record from text. expenseKeywords overrides the
// configured keyword list when non-nil. The result is not validated.
func (p *Parser) Parse(text string, expenseKeywords []string) model.LedgerRecord {
	keywords := p.cfg.ExpenseKeywords
	if expenseKeywords != nil {
		keywords = cleanKeywords(expenseKeywords)
	}

	st := &parseState{}
	candidates := p.classify(preprocess(text), st)
	logical := associate(p.filterNoise(candidates, keywords))

	items := []model.LedgerItem{}
	var unmatched []string

	for _, ll := range logical {
		if matchLabelledAggregate(st, ll.text) {
			continue
		}
		if isPureNumber(ll.text) {
			unmatched = append(unmatched, ll.text)
			continue
		}

		m, rule, ok := matchItem(ll.text)
		if !ok {
			unmatched = append(unmatched, ll.text)
			continue
		}
		item, ok := p.buildItem(st, ll.text, m, keywords)
		if !ok {
			continue
		}
		p.logger.Debug("parsed item", "rule", rule, "name", item.Name, "amount", item.Amount)
		items = append(items, item)
	}

	p.resolveUnmatched(st, unmatched)

	record := model.LedgerRecord{
		Date:      st.date,
		Items:     items,
		RawText:   text,
		Anomalies: st.anomalies,
	}
	if record.Anomalies == nil {
		record.Anomalies = []model.Anomaly{}
	}
	record.HasAnomalies = len(record.Anomalies) > 0
	apply(&record, Summarize(items, st.declared), st.declared)

	p.logger.Debug("ledger parsed",
		"items", len(items),
		"anomalies", len(record.Anomalies),
		"calculated_total", record.CalculatedTotal)

	return record
}

// classify runs the whole-line rules and returns the lines left for item
// parsing.
func (p *Parser) classify(lines []string, st *parseState) []string {
	candidates := make([]string, 0, len(lines))
	for _, line := range lines {
		consumed := false
		for _, r := range lineRules {
			if r.apply(st, line) {
				p.logger.Debug("classified line", "rule", r.name, "line", line)
				consumed = true
				break
			}
		}
		if !consumed {
			candidates = append(candidates, line)
		}
	}
	return candidates
}

// associate joins a bare number onto the preceding line when that line has
// no digits of its own: OCR often puts a name and its amount on separate
// visual lines.
func associate(lines []string) []logicalLine {
	out := make([]logicalLine, 0, len(lines))
	for _, line := range lines {
		if n := len(out); n > 0 && isPureNumber(line) {
			prev := out[n-1]
			if prev.mergedName == "" && !hasDigit(prev.text) {
				out[n-1] = logicalLine{text: prev.text + " " + line, mergedName: prev.text}
				continue
			}
		}
		out = append(out, logicalLine{text: line})
	}
	return out
}

// resolveUnmatched interprets lines no item rule accepted. Bare numbers
// supply a fallback declared total (the largest) and declared balance (the
// last, when there are at least two); anything resembling an item attempt
// is reported. A name line merged with its amount never reaches here, so a
// name repeated on its own is reported like any other stray line.
func (p *Parser) resolveUnmatched(st *parseState, unmatched []string) {
	var numbers []float64
	for _, line := range unmatched {
		switch {
		case isPureNumber(line):
			numbers = append(numbers, parseNumber(line))
		case hasLetter(line):
			st.anomaly(model.KindUnparseableLine, model.SeverityWarning,
				fmt.Sprintf("unparseable line: %q", line))
		default:
			p.logger.Debug("ignored unmatched line", "line", line)
		}
	}

	if len(numbers) == 0 {
		return
	}
	if st.declared.Total == nil && st.declared.SpecialTotal == nil {
		largest := numbers[0]
		for _, n := range numbers[1:] {
			largest = max(largest, n)
		}
		st.declared.Total = &largest
	}
	if st.declared.Balance == nil && len(numbers) >= 2 {
		last := numbers[len(numbers)-1]
		st.declared.Balance = &last
	}
}
