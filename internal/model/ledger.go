package model

// Category classifies a ledger line.
type Category string

// Ledger item categories.
const (
	CategoryIncome   Category = "income"
	CategoryExpense  Category = "expense"
	CategoryTransfer Category = "transfer"
)

// CountsTowardTotal reports whether items of this category are summed into
// the calculated total.
func (c Category) CountsTowardTotal() bool {
	switch c {
	case CategoryIncome, CategoryTransfer:
		return true
	case CategoryExpense:
		return false
	}
	return false
}

// LedgerItem is one parsed line of the ledger.
type LedgerItem struct {
	Name         string   `json:"name"`
	Category     Category `json:"category"`
	ReviewReason string   `json:"review_reason,omitempty"`
	Amount       float64  `json:"amount"`
	Discount     int      `json:"discount"`
	NeedsReview  bool     `json:"needs_review"`
}

// DeclaredFigures are the aggregates written on the document itself.
type DeclaredFigures struct {
	Total                *float64 `json:"declared_total,omitempty"`
	Discount             *float64 `json:"declared_discount,omitempty"`
	Balance              *float64 `json:"declared_balance,omitempty"`
	SpecialTotal         *float64 `json:"declared_special_total,omitempty"`
	SpecialDiscountTotal *float64 `json:"declared_special_discount_total,omitempty"`
}

// CustomFields holds the secondary aggregates of a record.
type CustomFields struct {
	DeclaredBalance              *float64 `json:"declared_balance"`
	DeclaredDiscount             *float64 `json:"declared_discount"`
	DeclaredSpecialTotal         *float64 `json:"declared_special_total"`
	DeclaredSpecialDiscountTotal *float64 `json:"declared_special_discount_total"`
	FinalBalance                 float64  `json:"final_balance"`
	CalculatedTotalDiscount      int      `json:"calculated_total_discount"`
	CalculatedExpense            float64  `json:"calculated_expense"`
}

// LedgerRecord is the structured result of parsing one ledger image.
type LedgerRecord struct {
	// Date is ISO 8601 (YYYY-MM-DD); nil when no date was recognized.
	Date *string `json:"date"`
	// DeclaredTotal is the effective declared total: the special declared
	// total when present, otherwise the generic one.
	DeclaredTotal *float64 `json:"declared_total"`
	// GenericDeclaredTotal is the plain declared total before the special
	// total takes precedence; kept so recomputation can rebuild the figures.
	GenericDeclaredTotal *float64     `json:"generic_declared_total,omitempty"`
	RawText              string       `json:"raw_text,omitempty"`
	Items                []LedgerItem `json:"items"`
	Anomalies            []Anomaly    `json:"anomalies"`
	CustomFields         CustomFields `json:"custom_fields"`
	CalculatedTotal      float64      `json:"calculated_total"`
	HasAnomalies         bool         `json:"has_anomalies"`
	Validated            bool         `json:"validated"`
}

// Declared returns the declared figures carried by the record.
func (r *LedgerRecord) Declared() DeclaredFigures {
	return DeclaredFigures{
		Total:                r.GenericDeclaredTotal,
		Discount:             r.CustomFields.DeclaredDiscount,
		Balance:              r.CustomFields.DeclaredBalance,
		SpecialTotal:         r.CustomFields.DeclaredSpecialTotal,
		SpecialDiscountTotal: r.CustomFields.DeclaredSpecialDiscountTotal,
	}
}

// Clone returns a deep copy of the record's mutable slices.
func (r LedgerRecord) Clone() LedgerRecord {
	out := r
	out.Items = append([]LedgerItem(nil), r.Items...)
	out.Anomalies = make([]Anomaly, len(r.Anomalies))
	copy(out.Anomalies, r.Anomalies)
	return out
}

// AddAnomaly appends an anomaly and keeps HasAnomalies in sync.
func (r *LedgerRecord) AddAnomaly(a Anomaly) {
	r.Anomalies = append(r.Anomalies, a)
	r.HasAnomalies = true
}
