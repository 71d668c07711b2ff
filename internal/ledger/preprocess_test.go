package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "period read for space", input: "文正.500", want: []string{"文正 500"}},
		{name: "period between digits kept", input: "文正 1.5", want: []string{"文正 1.5"}},
		{name: "blank lines dropped and trimmed", input: "  文正 500 \n\n\t醬油 200", want: []string{"文正 500", "醬油 200"}},
		{name: "two records joined by slash", input: "文正500/惠瑛300", want: []string{"文正500", "惠瑛300"}},
		{name: "three records joined", input: "文正500 / 惠瑛300/佳美200", want: []string{"文正500", "惠瑛300", "佳美200"}},
		{name: "compact date not split", input: "114 10/15", want: []string{"114 10/15"}},
		{name: "digit slash digit not split", input: "500/300", want: []string{"500/300"}},
		{name: "right half without digit not split", input: "文正500/惠瑛", want: []string{"文正500/惠瑛"}},
		{name: "left half without name not split", input: "500/惠瑛300", want: []string{"500/惠瑛300"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, preprocess(tt.input))
		})
	}
}
