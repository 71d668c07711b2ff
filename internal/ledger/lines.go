package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/ledgerscan/internal/model"
)

// rocYearOffset converts a Republic-calendar year to Gregorian.
const rocYearOffset = 1911

var (
	rocLongDate    = regexp.MustCompile(`(\d{2,3})年(\d{1,2})月(\d{1,2})日`)
	rocCompactDate = regexp.MustCompile(`^(\d{2,3})\s*(\d{1,2})/(\d{1,2})(?:\D|$)`)
	specialTotal   = regexp.MustCompile(`加\s*(\d+(?:\.\d+)?)\s*[Xx×]\s*(\d+(?:\.\d+)?)`)
	discountLine   = regexp.MustCompile(`^[xX](\d+(?:\.\d+)?)$`)
	totalLabel     = regexp.MustCompile(`(?i)^(合計|總計|總額|共計|total)\s*[:：]?\s*(\d[\d,]*(?:\.\d+)?)?$`)
	balanceLabel   = regexp.MustCompile(`(?i)^(結餘|餘額|balance)\s*[:：]?\s*(\d[\d,]*(?:\.\d+)?)?$`)
	pureNumber     = regexp.MustCompile(`^\d[\d,]*(?:\.\d+)?$`)
)

// lineRule classifies a whole line before item parsing. A rule that returns
// true consumes the line.
type lineRule struct {
	apply func(st *parseState, line string) bool
	name  string
}

// lineRules are tried top to bottom; the first match wins.
var lineRules = []lineRule{
	{name: "date", apply: matchDate},
	{name: "special_total", apply: matchSpecialTotal},
	{name: "declared_discount", apply: matchDeclaredDiscount},
	{name: "labelled_aggregate", apply: matchLabelledAggregate},
}

// matchDate consumes Republic-calendar date lines. Only the first date is
// kept; a malformed one is recorded and parsing continues.
func matchDate(st *parseState, line string) bool {
	m := rocLongDate.FindStringSubmatch(line)
	if m == nil {
		m = rocCompactDate.FindStringSubmatch(line)
	}
	if m == nil {
		return false
	}
	if st.date != nil {
		return true
	}

	date, err := rocToISO(m[1], m[2], m[3])
	if err != nil {
		st.anomaly(model.KindInvalidDate, model.SeverityWarning,
			fmt.Sprintf("invalid date %q: %v", line, err))
		return true
	}
	st.date = &date
	return true
}

func rocToISO(year, month, day string) (string, error) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", err
	}
	mo, err := strconv.Atoi(month)
	if err != nil {
		return "", err
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return "", err
	}
	if mo < 1 || mo > 12 {
		return "", fmt.Errorf("month %d out of range", mo)
	}

	t := time.Date(y+rocYearOffset, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != mo {
		return "", fmt.Errorf("day %d out of range for month %d", d, mo)
	}
	return t.Format("2006-01-02"), nil
}

// matchSpecialTotal consumes "加 <total> X<discount total>".
func matchSpecialTotal(st *parseState, line string) bool {
	m := specialTotal.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	if st.declared.SpecialTotal == nil {
		total, _ := strconv.ParseFloat(m[1], 64)
		discount, _ := strconv.ParseFloat(m[2], 64)
		st.declared.SpecialTotal = &total
		st.declared.SpecialDiscountTotal = &discount
	}
	return true
}

// matchDeclaredDiscount consumes a bare "x<number>" line.
func matchDeclaredDiscount(st *parseState, line string) bool {
	m := discountLine.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	if st.declared.Discount == nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		st.declared.Discount = &v
	}
	return true
}

// matchLabelledAggregate consumes "合計 1000" or "結餘 950". A label without a
// number is left for association with the following number line.
func matchLabelledAggregate(st *parseState, line string) bool {
	if m := totalLabel.FindStringSubmatch(line); m != nil && m[2] != "" {
		if st.declared.Total == nil {
			v := parseNumber(m[2])
			st.declared.Total = &v
		}
		return true
	}
	if m := balanceLabel.FindStringSubmatch(line); m != nil && m[2] != "" {
		if st.declared.Balance == nil {
			v := parseNumber(m[2])
			st.declared.Balance = &v
		}
		return true
	}
	return false
}

func isPureNumber(line string) bool {
	return pureNumber.MatchString(line)
}

// parseNumber parses a digit run that may carry thousands separators.
func parseNumber(s string) float64 {
	v, _ := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return v
}
