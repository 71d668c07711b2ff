package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Veraticus/ledgerscan/internal/model"
)

var (
	// A name that itself contains a number ("#64", "3號桌") followed by the
	// final whitespace-separated amount token. The name never ends in a
	// discount marker.
	embeddedNumberItem = regexp.MustCompile(`^(.*\d.*?[^\sxX×])\s+([0-9][0-9,.]*)$`)
	// A name and amount separated by whitespace or punctuation.
	separatedItem = regexp.MustCompile(`^(.+?)\s*[\s:：,，、]\s*([0-9][0-9,.]*)(.*)$`)
	// A CJK or Latin run immediately followed by digits.
	adjacentItem = regexp.MustCompile(`^([一-龥A-Za-z#]+)([0-9][0-9,.]*)(.*)$`)

	discountMarker = regexp.MustCompile(`[xX×]\s*(\d+)`)
	// A discount marker closing a line that has an amount before it, with or
	// without spaces around the marker: "500 x 2", "50x50", "300 ×20".
	trailingDiscount = regexp.MustCompile(`^(.*\d)\s*[xX×]\s*(\d+)$`)
	// "1.500" where the period was a misread space between name and amount.
	bledAmount = regexp.MustCompile(`^(\d{1,2})\.(\d{2,})$`)
	shortCaps  = regexp.MustCompile(`^[A-Z]{1,3}$`)
	numericish = regexp.MustCompile(`^[\d.,]+$`)
)

// itemMatch is the raw split of a line produced by an item rule.
type itemMatch struct {
	name     string
	amount   string
	discount string
	rest     string
	adjacent bool
}

// itemRule recognizes one shape of item line.
type itemRule struct {
	match func(line string) (itemMatch, bool)
	name  string
}

// itemRules are tried in priority order; the first match wins.
var itemRules = []itemRule{
	{name: "embedded_number_name", match: matchEmbeddedNumberName},
	{name: "separated", match: matchSeparated},
	{name: "adjacent", match: matchAdjacent},
}

func matchEmbeddedNumberName(line string) (itemMatch, bool) {
	m := embeddedNumberItem.FindStringSubmatch(line)
	if m == nil {
		return itemMatch{}, false
	}
	return itemMatch{name: m[1], amount: m[2]}, true
}

func matchSeparated(line string) (itemMatch, bool) {
	m := separatedItem.FindStringSubmatch(line)
	if m == nil {
		return itemMatch{}, false
	}
	return itemMatch{name: m[1], amount: m[2], rest: m[3]}, true
}

func matchAdjacent(line string) (itemMatch, bool) {
	m := adjacentItem.FindStringSubmatch(line)
	if m == nil {
		return itemMatch{}, false
	}
	return itemMatch{name: m[1], amount: m[2], rest: m[3], adjacent: true}, true
}

// matchItem runs the rule cascade over a logical line. A trailing discount
// marker is split off first so that no rule can take it for the amount.
func matchItem(line string) (itemMatch, string, bool) {
	body, discount := line, ""
	if d := trailingDiscount.FindStringSubmatch(line); d != nil {
		body, discount = d[1], d[2]
	}

	for _, r := range itemRules {
		if m, ok := r.match(body); ok {
			if m.discount == "" {
				m.discount = discount
			}
			return m, r.name, true
		}
	}
	return itemMatch{}, "", false
}

// buildItem turns a rule match into a ledger item, recording anomalies for
// rejected lines. ok is false when no item should be produced.
func (p *Parser) buildItem(st *parseState, line string, m itemMatch, keywords []string) (model.LedgerItem, bool) {
	name := strings.Trim(strings.TrimSpace(m.name), ":：,，、")
	amountStr := m.amount

	if b := bledAmount.FindStringSubmatch(amountStr); b != nil && name != "" {
		if m.adjacent {
			name += b[1]
		} else {
			name += " " + b[1]
		}
		amountStr = b[2]
	}

	if name == "" {
		st.anomaly(model.KindUnparseableLine, model.SeverityWarning,
			fmt.Sprintf("unparseable line (empty item name): %q", line))
		return model.LedgerItem{}, false
	}
	if numericish.MatchString(name) {
		st.anomaly(model.KindNumericName, model.SeverityWarning,
			fmt.Sprintf("item name should not be purely numeric: %q", line))
		return model.LedgerItem{}, false
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(amountStr, ",", ""), 64)
	if err != nil {
		st.anomaly(model.KindUnparseableAmount, model.SeverityWarning,
			fmt.Sprintf("cannot parse amount %q in line %q", amountStr, line))
		return model.LedgerItem{}, false
	}

	discountStr := m.discount
	rest := strings.TrimSpace(m.rest)
	if discountStr == "" && rest != "" {
		if d := discountMarker.FindStringSubmatch(rest); d != nil {
			discountStr = d[1]
			rest = strings.TrimSpace(strings.Replace(rest, d[0], "", 1))
		}
	}

	discount := 0
	if discountStr != "" {
		discount, err = strconv.Atoi(discountStr)
		if err != nil {
			st.anomaly(model.KindUnparseableAmount, model.SeverityWarning,
				fmt.Sprintf("cannot parse discount %q in line %q", discountStr, line))
			return model.LedgerItem{}, false
		}
	}

	item := model.LedgerItem{
		Name:     name,
		Amount:   amount,
		Discount: discount,
		Category: p.categorize(name, keywords),
	}

	switch {
	case shortCaps.MatchString(name):
		item.NeedsReview = true
		item.ReviewReason = "short all-caps name may be a Latin misreading of CJK characters"
	case rest != "":
		item.NeedsReview = true
		item.ReviewReason = fmt.Sprintf("ignored trailing text %q", rest)
	}

	return item, true
}

// categorize assigns transfer, expense or income by the item name.
func (p *Parser) categorize(name string, keywords []string) model.Category {
	if strings.Contains(name, p.cfg.TransferMarker) {
		return model.CategoryTransfer
	}
	if containsAny(name, keywords) {
		return model.CategoryExpense
	}
	return model.CategoryIncome
}
