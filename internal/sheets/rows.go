package sheets

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/ledgerscan/internal/model"
	"github.com/Veraticus/ledgerscan/internal/storage"
)

// Row types written to the Type column.
const (
	RowItem    = "item"
	RowSummary = "summary"
	RowFailed  = "failed"
)

// headerRowIndex is the zero-based row holding the column headers.
const headerRowIndex = 2

var columns = []string{
	"Image",
	"Source",
	"Date",
	"Type",
	"Name",
	"Category",
	"Amount",
	"Discount",
	"Declared Total",
	"Final Balance",
	"Anomalies",
	"Needs Review",
	"Notes",
}

// Columns holding money, formatted as numbers.
const (
	colAmount        = 6
	colDeclaredTotal = 8
	colFinalBalance  = 9
)

// buildRows lays out one row per item followed by a summary row for each
// image. Images are ordered by ledger date, then image id, so repeated
// exports of the same data produce the same sheet.
func buildRows(results []storage.StoredResult, exportedAt time.Time) [][]any {
	sorted := make([]storage.StoredResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := recordDate(sorted[i].Result), recordDate(sorted[j].Result)
		if di != dj {
			return di < dj
		}
		return sorted[i].ImageID < sorted[j].ImageID
	})

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}

	values := make([][]any, 0, 3+len(sorted)*4)
	values = append(values,
		[]any{"Ledger Scan Export", exportedAt.Format("2006-01-02 15:04")},
		[]any{},
		header,
	)

	for _, sr := range sorted {
		values = append(values, resultRows(sr)...)
	}
	return values
}

func resultRows(sr storage.StoredResult) [][]any {
	res := sr.Result
	id := shortID(sr.ImageID)
	date := recordDate(res)

	if res.Status == model.StatusFailed || res.Record == nil {
		return [][]any{{id, sr.Source, date, RowFailed, "", "", "", "", "", "", "", true, res.Error}}
	}

	rec := res.Record
	rows := make([][]any, 0, len(rec.Items)+1)
	for _, item := range rec.Items {
		rows = append(rows, []any{
			id,
			sr.Source,
			date,
			RowItem,
			item.Name,
			string(item.Category),
			item.Amount,
			item.Discount,
			"",
			"",
			"",
			item.NeedsReview,
			item.ReviewReason,
		})
	}

	declared := any("")
	if rec.DeclaredTotal != nil {
		declared = *rec.DeclaredTotal
	}

	rows = append(rows, []any{
		id,
		sr.Source,
		date,
		RowSummary,
		"",
		"",
		rec.CalculatedTotal,
		rec.CustomFields.CalculatedTotalDiscount,
		declared,
		rec.CustomFields.FinalBalance,
		len(rec.Anomalies),
		res.NeedsReview,
		anomalyNotes(rec.Anomalies),
	})
	return rows
}

func recordDate(res model.Result) string {
	if res.Record == nil || res.Record.Date == nil {
		return ""
	}
	return *res.Record.Date
}

func anomalyNotes(anomalies []model.Anomaly) string {
	if len(anomalies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		parts = append(parts, fmt.Sprintf("[%s] %s", a.Severity, a.Message))
	}
	return strings.Join(parts, "; ")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
