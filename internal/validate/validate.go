// Package validate reconciles a parsed ledger record against the figures
// declared on the document and the OCR quality, producing typed anomalies.
package validate

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/model"
)

// Config toggles and tunes the reconciliation checks.
type Config struct {
	TaxKeywords            []string
	MismatchTolerance      float64
	ExpectedTaxRate        float64
	TaxRateTolerance       float64
	LowConfidenceThreshold float64
	ReviewThreshold        float64
	CheckTotalMismatch     bool
	CheckDiscountMismatch  bool
	CheckTaxRate           bool
	CheckLowConfidence     bool
}

// DefaultConfig returns the built-in validation settings.
func DefaultConfig() Config {
	return Config{
		CheckTotalMismatch:     true,
		CheckDiscountMismatch:  true,
		CheckTaxRate:           true,
		CheckLowConfidence:     true,
		MismatchTolerance:      0.01,
		ExpectedTaxRate:        0.05,
		TaxRateTolerance:       0.02,
		TaxKeywords:            []string{"稅", "tax"},
		LowConfidenceThreshold: 0.7,
		ReviewThreshold:        0.6,
	}
}

// Validate checks the configuration for values no check can work with.
func (c Config) Validate() error {
	if c.MismatchTolerance < 0 {
		return fmt.Errorf("%w: validation.mismatch_tolerance must not be negative", common.ErrInvalidConfig)
	}
	if c.TaxRateTolerance < 0 {
		return fmt.Errorf("%w: validation.tax_rate_tolerance must not be negative", common.ErrInvalidConfig)
	}
	if c.LowConfidenceThreshold < 0 || c.LowConfidenceThreshold > 1 {
		return fmt.Errorf("%w: validation.low_confidence_threshold must be in [0,1]", common.ErrInvalidConfig)
	}
	if c.ReviewThreshold < 0 || c.ReviewThreshold > 1 {
		return fmt.Errorf("%w: validation.review_threshold must be in [0,1]", common.ErrInvalidConfig)
	}
	return nil
}

// minAbsoluteTolerance is the smallest total difference ever reported.
const minAbsoluteTolerance = 1.0

// discountEpsilon absorbs float noise in a declared discount like "x30.0".
const discountEpsilon = 1e-9

// Validator runs the reconciliation checks. It is safe for concurrent use.
type Validator struct {
	logger *slog.Logger
	cfg    Config
}

// NewValidator creates a validator.
func NewValidator(cfg Config, logger *slog.Logger) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	keywords := make([]string, 0, len(cfg.TaxKeywords))
	for _, k := range cfg.TaxKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	cfg.TaxKeywords = keywords
	return &Validator{cfg: cfg, logger: common.OrDefault(logger)}, nil
}

// Validate returns a validated copy of record. Anomalies from an earlier
// validation are replaced; parse anomalies are kept. On an internal failure
// the input record is returned unchanged.
func (v *Validator) Validate(record model.LedgerRecord, ocrConfidence float64) (out model.LedgerRecord) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("validation failed, returning record unvalidated", "panic", r)
			out = record
		}
	}()

	out = record.Clone()
	out.Anomalies = out.Anomalies[:0]
	for _, a := range record.Anomalies {
		if !a.Kind.IsValidation() {
			out.Anomalies = append(out.Anomalies, a)
		}
	}

	if v.cfg.CheckTotalMismatch {
		if a, ok := v.checkTotalMismatch(out); ok {
			out.Anomalies = append(out.Anomalies, a)
		}
	}
	if v.cfg.CheckDiscountMismatch {
		if a, ok := checkDiscountMismatch(out); ok {
			out.Anomalies = append(out.Anomalies, a)
		}
	}
	if v.cfg.CheckTaxRate {
		if a, ok := v.checkTaxRate(out); ok {
			out.Anomalies = append(out.Anomalies, a)
		}
	}
	if v.cfg.CheckLowConfidence {
		if ocrConfidence < v.cfg.LowConfidenceThreshold {
			out.Anomalies = append(out.Anomalies, model.Anomaly{
				Kind:     model.KindLowConfidence,
				Severity: model.SeverityWarning,
				Message:  fmt.Sprintf("OCR confidence too low: %.2f", ocrConfidence),
				Details:  map[string]float64{"confidence": ocrConfidence},
			})
		}
		if ocrConfidence < v.cfg.ReviewThreshold {
			for i := range out.Items {
				if !out.Items[i].NeedsReview {
					out.Items[i].NeedsReview = true
					out.Items[i].ReviewReason = fmt.Sprintf("OCR confidence %.2f below review threshold", ocrConfidence)
				}
			}
		}
	}

	out.HasAnomalies = len(out.Anomalies) > 0
	out.Validated = true

	v.logger.Debug("validation completed", "anomalies", len(out.Anomalies), "confidence", ocrConfidence)
	return out
}

// checkTotalMismatch compares the effective declared total against the
// calculated one with a relative tolerance and an absolute floor.
func (v *Validator) checkTotalMismatch(r model.LedgerRecord) (model.Anomaly, bool) {
	if r.DeclaredTotal == nil || *r.DeclaredTotal == 0 {
		return model.Anomaly{}, false
	}
	declared := *r.DeclaredTotal
	diff := math.Abs(r.CalculatedTotal - declared)
	if diff <= Tolerance(declared, v.cfg.MismatchTolerance) {
		return model.Anomaly{}, false
	}
	return model.Anomaly{
		Kind:     model.KindTotalMismatch,
		Severity: model.SeverityError,
		Message: fmt.Sprintf("total mismatch: calculated %.2f, declared %.2f, difference %.2f",
			r.CalculatedTotal, declared, diff),
		Details: map[string]float64{
			"calculated_total": r.CalculatedTotal,
			"declared_total":   declared,
			"difference":       diff,
		},
	}, true
}

// Tolerance is the largest acceptable difference between a declared total
// and the calculated one.
func Tolerance(declared, relative float64) float64 {
	return math.Max(math.Abs(declared)*relative, minAbsoluteTolerance)
}

// checkDiscountMismatch compares the declared discount total (the special
// total's discount, else the standalone discount line) with the sum of item
// discounts. Discounts are whole numbers, so any difference is reported.
func checkDiscountMismatch(r model.LedgerRecord) (model.Anomaly, bool) {
	declaredPtr := r.CustomFields.DeclaredSpecialDiscountTotal
	if declaredPtr == nil {
		declaredPtr = r.CustomFields.DeclaredDiscount
	}
	if declaredPtr == nil {
		return model.Anomaly{}, false
	}

	declared := *declaredPtr
	calculated := float64(r.CustomFields.CalculatedTotalDiscount)
	diff := math.Abs(calculated - declared)
	if diff < discountEpsilon {
		return model.Anomaly{}, false
	}
	return model.Anomaly{
		Kind:     model.KindDiscountMismatch,
		Severity: model.SeverityWarning,
		Message: fmt.Sprintf("discount mismatch: calculated %d, declared %s",
			r.CustomFields.CalculatedTotalDiscount, strconv.FormatFloat(declared, 'f', -1, 64)),
		Details: map[string]float64{
			"calculated_discount": calculated,
			"declared_discount":   declared,
			"difference":          diff,
		},
	}, true
}

// checkTaxRate compares tax items against the non-tax expenses they apply to.
func (v *Validator) checkTaxRate(r model.LedgerRecord) (model.Anomaly, bool) {
	var tax, subtotal float64
	hasTax := false
	for _, it := range r.Items {
		if v.isTaxItem(it.Name) {
			tax += it.Amount
			hasTax = true
			continue
		}
		if it.Category == model.CategoryExpense {
			subtotal += it.Amount
		}
	}
	if !hasTax || subtotal <= 0 {
		return model.Anomaly{}, false
	}

	actual := tax / subtotal
	if math.Abs(actual-v.cfg.ExpectedTaxRate) <= v.cfg.TaxRateTolerance {
		return model.Anomaly{}, false
	}
	return model.Anomaly{
		Kind:     model.KindTaxRate,
		Severity: model.SeverityWarning,
		Message:  fmt.Sprintf("unusual tax rate: actual %.1f%%, expected %.1f%%", actual*100, v.cfg.ExpectedTaxRate*100),
		Details: map[string]float64{
			"actual_rate":   actual,
			"expected_rate": v.cfg.ExpectedTaxRate,
		},
	}, true
}

func (v *Validator) isTaxItem(name string) bool {
	lower := strings.ToLower(name)
	for _, k := range v.cfg.TaxKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
