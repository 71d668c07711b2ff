package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/ledgerscan/internal/model"
	"github.com/Veraticus/ledgerscan/internal/storage"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// FormatAmount prints an amount without trailing zeros.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return FormatAmount(*v)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtleStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle.PaddingLeft(0)
		})
}

// ResultLine summarizes a result on a single line.
func ResultLine(source string, res model.Result) string {
	if res.Status == model.StatusFailed || res.Record == nil {
		return FormatError(fmt.Sprintf("%s: %s", source, res.Error))
	}

	rec := res.Record
	date := "no date"
	if rec.Date != nil {
		date = *rec.Date
	}
	line := fmt.Sprintf("%s: %s, %d items, total %s, balance %s, confidence %.2f",
		source, date, len(rec.Items),
		FormatAmount(rec.CalculatedTotal),
		FormatAmount(rec.CustomFields.FinalBalance),
		res.Confidence)

	if res.NeedsReview {
		return FormatWarning(line + fmt.Sprintf(" (%d anomalies, needs review)", len(rec.Anomalies)))
	}
	return FormatSuccess(line)
}

// RenderResult renders a full result: header figures, the item table and
// any anomalies.
func RenderResult(source string, res model.Result) string {
	if res.Status == model.StatusFailed || res.Record == nil {
		body := ErrorStyle.Render(res.Error)
		for engine, msg := range res.EngineErrors {
			body += "\n" + SubtleStyle.Render(fmt.Sprintf("%s: %s", engine, msg))
		}
		return RenderBox(source, body)
	}

	rec := res.Record
	var b strings.Builder

	date := "-"
	if rec.Date != nil {
		date = *rec.Date
	}
	fmt.Fprintf(&b, "Date:        %s\n", date)
	fmt.Fprintf(&b, "Confidence:  %.2f\n", res.Confidence)
	fmt.Fprintf(&b, "Calculated:  %s\n", FormatAmount(rec.CalculatedTotal))
	fmt.Fprintf(&b, "Declared:    %s\n", formatOptional(rec.DeclaredTotal))
	fmt.Fprintf(&b, "Discount:    %d\n", rec.CustomFields.CalculatedTotalDiscount)
	fmt.Fprintf(&b, "Expense:     %s\n", FormatAmount(rec.CustomFields.CalculatedExpense))
	fmt.Fprintf(&b, "Balance:     %s", FormatAmount(rec.CustomFields.FinalBalance))
	if rec.CustomFields.DeclaredBalance != nil {
		fmt.Fprintf(&b, " (declared %s)", FormatAmount(*rec.CustomFields.DeclaredBalance))
	}
	b.WriteString("\n")

	if len(rec.Items) > 0 {
		t := newTable("#", "Name", "Category", "Amount", "Discount", "Review")
		for i, item := range rec.Items {
			review := ""
			if item.NeedsReview {
				review = ReviewIcon + " " + item.ReviewReason
			}
			t.Row(strconv.Itoa(i+1), item.Name, string(item.Category), FormatAmount(item.Amount), strconv.Itoa(item.Discount), review)
		}
		b.WriteString("\n" + t.String() + "\n")
	}

	if len(rec.Anomalies) > 0 {
		b.WriteString("\n" + BoldStyle.Render("Anomalies") + "\n")
		for _, a := range rec.Anomalies {
			line := fmt.Sprintf("[%s] %s: %s", a.Severity, a.Kind, a.Message)
			if a.Severity == model.SeverityError {
				b.WriteString(ErrorStyle.Render(line) + "\n")
			} else {
				b.WriteString(WarningStyle.Render(line) + "\n")
			}
		}
	}

	title := source
	if res.NeedsReview {
		title += "  " + ReviewIcon + " needs review"
	}
	return RenderBox(title, strings.TrimRight(b.String(), "\n"))
}

// RenderHistory lists stored results as a table.
func RenderHistory(results []storage.StoredResult) string {
	if len(results) == 0 {
		return FormatInfo("No results stored.")
	}

	title := FormatTitle(fmt.Sprintf("Scan history (%d)", len(results)))
	t := newTable("Image", "Source", "Processed", "Status", "Date", "Total", "Review")
	for _, sr := range results {
		res := sr.Result
		date, total := "-", "-"
		if res.Record != nil {
			if res.Record.Date != nil {
				date = *res.Record.Date
			}
			total = FormatAmount(res.Record.CalculatedTotal)
		}
		review := ""
		if res.NeedsReview {
			review = ReviewIcon
		}
		id := sr.ImageID
		if len(id) > 12 {
			id = id[:12]
		}
		t.Row(id, sr.Source, res.ProcessedAt.Local().Format("2006-01-02 15:04"), string(res.Status), date, total, review)
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, t.String())
}

// RenderStats summarizes the results store.
func RenderStats(stats storage.Stats) string {
	content := fmt.Sprintf("Processed:     %d\nFailed:        %d\nNeeds review:  %d",
		stats.Processed, stats.Failed, stats.NeedsReview)
	return RenderBox("Scan history", content)
}
