package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoiseFilters(t *testing.T) {
	keywords := DefaultExpenseKeywords

	tests := []struct {
		name string
		line string
		next string
		drop bool
	}{
		{name: "isolated bracket", line: "[", drop: true},
		{name: "pipe and paren", line: "|)", drop: true},
		{name: "short name kept", line: "文正", drop: false},
		{name: "short hash label kept", line: "#6", drop: false},
		{name: "lower-case misread", line: "ab 12", drop: true},
		{name: "mixed-case misread", line: "Ab12", drop: true},
		{name: "all-caps kept for review", line: "AB 12", drop: false},
		{name: "latin word with a real amount kept", line: "ab 500", drop: false},
		{name: "separator rule", line: "一一一一一", drop: true},
		{name: "long name followed by amount", line: "王大明先生", next: "500", drop: false},
		{name: "keyword line kept", line: "冷氣外機保養", drop: false},
		{name: "three characters kept", line: "王大明", drop: false},
		{name: "item line kept", line: "文正 500", drop: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dropped := false
			for _, f := range noiseFilters {
				if f.drop(tt.line, tt.next, keywords) {
					dropped = true
					break
				}
			}
			assert.Equal(t, tt.drop, dropped)
		})
	}
}

func TestAssociate(t *testing.T) {
	got := associate([]string{"文正", "500", "600", "惠瑛 300", "200", "佳美", "佳美"})

	assert.Equal(t, []logicalLine{
		{text: "文正 500", mergedName: "文正"},
		{text: "600"},
		{text: "惠瑛 300"},
		{text: "200"},
		{text: "佳美"},
		{text: "佳美"},
	}, got)
}
