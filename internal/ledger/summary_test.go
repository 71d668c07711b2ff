package ledger

import (
	"testing"

	"github.com/Veraticus/ledgerscan/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestExpenseDeduction(t *testing.T) {
	tests := []struct {
		amount float64
		want   float64
	}{
		{amount: 0, want: 0},
		{amount: 200, want: 20},
		{amount: 150, want: 20},
		{amount: 149, want: 10},
		{amount: 40, want: 0},
		{amount: 1234, want: 120},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpenseDeduction(tt.amount), "amount %v", tt.amount)
	}
}

func TestSummarize(t *testing.T) {
	items := []model.LedgerItem{
		{Name: "文正", Amount: 500, Discount: 10, Category: model.CategoryIncome},
		{Name: "親匯", Amount: 300, Category: model.CategoryTransfer},
		{Name: "醬油", Amount: 200, Discount: 5, Category: model.CategoryExpense},
		{Name: "順茂", Amount: 155, Category: model.CategoryExpense},
	}

	s := Summarize(items, model.DeclaredFigures{Total: ptr(800)})

	assert.Equal(t, 800.0, s.CalculatedTotal)
	assert.Equal(t, 15, s.CalculatedTotalDiscount)
	assert.Equal(t, 40.0, s.CalculatedExpense)
	assert.Equal(t, 760.0, s.FinalBalance)
	require.NotNil(t, s.DeclaredTotal)
	assert.Equal(t, 800.0, *s.DeclaredTotal)
}

func TestEffectiveDeclaredTotal(t *testing.T) {
	tests := []struct {
		name     string
		declared model.DeclaredFigures
		want     *float64
	}{
		{name: "none", declared: model.DeclaredFigures{}},
		{name: "generic only", declared: model.DeclaredFigures{Total: ptr(1000)}, want: ptr(1000)},
		{name: "special wins", declared: model.DeclaredFigures{Total: ptr(1000), SpecialTotal: ptr(800)}, want: ptr(800)},
		{name: "zero special ignored", declared: model.DeclaredFigures{Total: ptr(1000), SpecialTotal: ptr(0)}, want: ptr(1000)},
		{name: "zero generic ignored", declared: model.DeclaredFigures{Total: ptr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, effectiveDeclaredTotal(tt.declared))
		})
	}
}

func TestRecompute(t *testing.T) {
	original := newTestParser().Parse("114年10月15日\n文正 500\n惠瑛 500\n醬油 200\nabc def\n加 1000X0", nil)
	require.Len(t, original.Items, 3)
	require.Len(t, original.Anomalies, 1)

	edited := original.Clone()
	edited.Items[1].Amount = 450
	edited.Items = append(edited.Items, model.LedgerItem{Name: "佳美", Amount: 50, Category: model.CategoryIncome})

	got := Recompute(edited)

	assert.Equal(t, 1000.0, got.CalculatedTotal)
	assert.Equal(t, 980.0, got.CustomFields.FinalBalance)
	require.NotNil(t, got.DeclaredTotal)
	assert.Equal(t, 1000.0, *got.DeclaredTotal)
	assert.Equal(t, original.Anomalies, got.Anomalies)
	assert.Equal(t, original.Date, got.Date)

	// Neither the parsed nor the edited record is touched.
	assert.Equal(t, 500.0, original.Items[1].Amount)
	assert.Equal(t, 1000.0, original.CalculatedTotal)
	assert.Equal(t, 450.0, edited.Items[1].Amount)
	assert.Len(t, edited.Items, 4)
}

func TestRecompute_MatchesParse(t *testing.T) {
	rec := newTestParser().Parse("文正 500 x10\n親匯 300\n醬油 200\n合計 800\n結餘 780", nil)

	assert.Equal(t, rec, Recompute(rec))
}

func TestRecompute_NilItems(t *testing.T) {
	got := Recompute(model.LedgerRecord{})

	assert.NotNil(t, got.Items)
	assert.Zero(t, got.CalculatedTotal)
	assert.Nil(t, got.DeclaredTotal)
}
