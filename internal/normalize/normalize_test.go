package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "full-width digits", input: "文正　５００", want: "文正 500"},
		{name: "full-width latin and marker", input: "ＡＢＣ　ｘ１０", want: "ABC x10"},
		{name: "full-width punctuation", input: "加：８００／５０", want: "加:800/50"},
		{name: "cjk punctuation kept", input: "醬油、味精。", want: "醬油、味精。"},
		{name: "half-width untouched", input: "114年10月15日\n文正 500", want: "114年10月15日\n文正 500"},
		{name: "crlf unified", input: "a 1\r\nb 2\r\n", want: "a 1\nb 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.input))
		})
	}
}

func TestTextIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"１１４年１０月１５日\r\n文正　５００\r\n醬油２００",
		"加　８００Ｘ５０",
		"ｘ３０\n\n￥１２０",
		"plain ascii 123",
		"混合 Ｍｉｘｅｄ 全形 ＆ 半形 &",
	}

	for _, in := range inputs {
		once := Text(in)
		assert.Equal(t, once, Text(once), "input %q", in)
	}
}

func TestTextPreservesLineCount(t *testing.T) {
	in := "１\n２\r\n３\n４"
	out := Text(in)
	assert.Equal(t, 4, len(strings.Split(out, "\n")))
	assert.Equal(t, "1\n2\n3\n4", out)
}
