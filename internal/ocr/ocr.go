// Package ocr holds the engine-independent pieces shared by the OCR
// adapters: image preparation and conversion of word lists into engine
// results.
package ocr

import (
	"strings"

	"github.com/Veraticus/ledgerscan/internal/model"
)

// Word is one recognized word as reported by a word-level engine.
type Word struct {
	Box  *model.BoundingBox
	Text string
	// Confidence is on the engine's 0-100 scale; zero or negative means
	// the engine did not recognize anything there.
	Confidence float64
}

// FromWords builds an engine result from word boxes. Words without text or
// confidence are dropped. When fullText is empty the kept words are joined
// with spaces.
func FromWords(engine, fullText string, words []Word) model.EngineResult {
	result := model.EngineResult{Engine: engine, Blocks: []model.OCRBlock{}}

	var (
		total float64
		parts []string
	)
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" || w.Confidence <= 0 {
			continue
		}
		conf := min(w.Confidence/100, 1)
		result.Blocks = append(result.Blocks, model.OCRBlock{
			Text:        text,
			Confidence:  conf,
			BoundingBox: w.Box,
		})
		parts = append(parts, text)
		total += conf
	}

	result.FullText = fullText
	if strings.TrimSpace(fullText) == "" {
		result.FullText = strings.Join(parts, " ")
	}
	if n := len(result.Blocks); n > 0 {
		result.OverallConfidence = total / float64(n)
	}
	return result
}
