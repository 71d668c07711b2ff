package ledger

import "strings"

// DefaultExpenseKeywords are the item-name substrings treated as expenses
// when neither configuration nor the caller supplies a list.
var DefaultExpenseKeywords = []string{"冷氣外機", "冷氣外机", "順茂", "顺茂", "醬油"}

// DefaultTransferMarker marks remittance lines, which count toward the total.
const DefaultTransferMarker = "匯"

// Config holds parser settings.
type Config struct {
	ExpenseKeywords []string
	TransferMarker  string
}

// DefaultConfig returns the built-in parser settings.
func DefaultConfig() Config {
	return Config{
		ExpenseKeywords: append([]string(nil), DefaultExpenseKeywords...),
		TransferMarker:  DefaultTransferMarker,
	}
}

// cleanKeywords trims keywords and drops empty entries.
func cleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
