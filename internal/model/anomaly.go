package model

// Severity grades how serious an anomaly is.
type Severity string

// Severity levels.
const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// AnomalyKind identifies the check that produced an anomaly.
type AnomalyKind string

// Anomaly kinds raised while parsing.
const (
	KindInvalidDate       AnomalyKind = "invalid_date"
	KindNumericName       AnomalyKind = "numeric_name"
	KindUnparseableLine   AnomalyKind = "unparseable_line"
	KindUnparseableAmount AnomalyKind = "unparseable_amount"
)

// Anomaly kinds raised by validation.
const (
	KindTotalMismatch    AnomalyKind = "total_mismatch"
	KindDiscountMismatch AnomalyKind = "discount_mismatch"
	KindTaxRate          AnomalyKind = "tax_rate"
	KindLowConfidence    AnomalyKind = "low_confidence"
)

// IsValidation reports whether the kind is produced by the validator rather
// than the parser.
func (k AnomalyKind) IsValidation() bool {
	switch k {
	case KindTotalMismatch, KindDiscountMismatch, KindTaxRate, KindLowConfidence:
		return true
	case KindInvalidDate, KindNumericName, KindUnparseableLine, KindUnparseableAmount:
		return false
	}
	return false
}

// Anomaly is a machine-detected inconsistency surfaced to a reviewer.
type Anomaly struct {
	// Details carries the figures behind the anomaly (e.g. calculated and
	// declared totals) for display and audit.
	Details  map[string]float64 `json:"details,omitempty"`
	Kind     AnomalyKind        `json:"kind"`
	Message  string             `json:"message"`
	Severity Severity           `json:"severity"`
}
