package ledger

import (
	"math"

	"github.com/Veraticus/ledgerscan/internal/model"
)

// expenseFeeRate and expenseFeeUnit define the per-expense deduction used for
// the final balance: 10% of the amount, rounded to the nearest 10.
const (
	expenseFeeRate = 0.1
	expenseFeeUnit = 10
)

// Summary holds the aggregates computed from a set of items.
type Summary struct {
	// DeclaredTotal is the effective declared total used for mismatch
	// checks: the special declared total, else the generic one, else nil.
	DeclaredTotal           *float64
	CalculatedTotal         float64
	CalculatedExpense       float64
	FinalBalance            float64
	CalculatedTotalDiscount int
}

// Summarize computes the record aggregates from items and the declared
// figures. It is shared by the initial parse and by recomputation after
// items were edited, so both paths produce identical numbers.
func Summarize(items []model.LedgerItem, declared model.DeclaredFigures) Summary {
	var s Summary
	for _, it := range items {
		s.CalculatedTotalDiscount += it.Discount
		if it.Category.CountsTowardTotal() {
			s.CalculatedTotal += it.Amount
			continue
		}
		s.CalculatedExpense += ExpenseDeduction(it.Amount)
	}
	s.FinalBalance = s.CalculatedTotal - s.CalculatedExpense
	s.DeclaredTotal = effectiveDeclaredTotal(declared)
	return s
}

// ExpenseDeduction is the amount an expense item subtracts from the balance.
func ExpenseDeduction(amount float64) float64 {
	return math.Round(amount*expenseFeeRate/expenseFeeUnit) * expenseFeeUnit
}

// effectiveDeclaredTotal picks the special total over the generic one. A
// declared zero is treated as absent: it is never a real total.
func effectiveDeclaredTotal(d model.DeclaredFigures) *float64 {
	if d.SpecialTotal != nil && *d.SpecialTotal != 0 {
		v := *d.SpecialTotal
		return &v
	}
	if d.Total != nil && *d.Total != 0 {
		v := *d.Total
		return &v
	}
	return nil
}

// apply writes the summary and declared figures into the record.
func apply(r *model.LedgerRecord, s Summary, declared model.DeclaredFigures) {
	r.CalculatedTotal = s.CalculatedTotal
	r.DeclaredTotal = s.DeclaredTotal
	r.GenericDeclaredTotal = declared.Total
	r.CustomFields = model.CustomFields{
		FinalBalance:                 s.FinalBalance,
		CalculatedExpense:            s.CalculatedExpense,
		CalculatedTotalDiscount:      s.CalculatedTotalDiscount,
		DeclaredBalance:              declared.Balance,
		DeclaredDiscount:             declared.Discount,
		DeclaredSpecialTotal:         declared.SpecialTotal,
		DeclaredSpecialDiscountTotal: declared.SpecialDiscountTotal,
	}
}

// Recompute rebuilds the aggregates of a record from its (possibly edited)
// items without re-parsing any text. The input record is not modified.
func Recompute(r model.LedgerRecord) model.LedgerRecord {
	out := r.Clone()
	if out.Items == nil {
		out.Items = []model.LedgerItem{}
	}
	declared := r.Declared()
	apply(&out, Summarize(out.Items, declared), declared)
	return out
}
