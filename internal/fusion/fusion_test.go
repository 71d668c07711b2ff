package fusion

import (
	"fmt"
	"sort"
	"testing"

	"github.com/Veraticus/ledgerscan/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig(), nil)
	require.NoError(t, err)
	return e
}

func result(engine string, blocks ...model.OCRBlock) model.EngineResult {
	r := model.EngineResult{Engine: engine, Blocks: blocks}
	for _, b := range blocks {
		r.OverallConfidence += b.Confidence
	}
	if len(blocks) > 0 {
		r.OverallConfidence /= float64(len(blocks))
	}
	return r
}

func block(text string, conf float64) model.OCRBlock {
	return model.OCRBlock{Text: text, Confidence: conf}
}

func TestFuse_MidSimilarityPairIsCombined(t *testing.T) {
	e := newTestEngine(t)

	fused := e.Fuse(result("a", block("ABC", 0.9)), result("b", block("ABD", 0.85)))

	require.Len(t, fused.Blocks, 1)
	got := fused.Blocks[0]
	assert.Equal(t, model.SourceCombined, got.Source)
	assert.Equal(t, "ABC", got.Text)
	assert.InDelta(t, 2.0/3.0, got.Similarity, 1e-9)
	// Similarity sits between the conflict and agreement thresholds, so the
	// weighted blend is used as is.
	assert.InDelta(t, 0.9*0.7+0.85*0.3, got.Confidence, 1e-9)
	require.NotNil(t, got.ConfidenceA)
	require.NotNil(t, got.ConfidenceB)
	assert.Equal(t, 0.9, *got.ConfidenceA)
	assert.Equal(t, 0.85, *got.ConfidenceB)
	assert.Equal(t, 0.7, got.WeightA)
	assert.Equal(t, 0.3, got.WeightB)
}

func TestFuse_AgreementBoostAndConflictPenalty(t *testing.T) {
	e := newTestEngine(t)

	exact := e.Fuse(result("a", block("文正 500", 0.8)), result("b", block("文正 500", 0.8)))
	require.Len(t, exact.Blocks, 1)
	assert.InDelta(t, 0.8*(1+0.1*1.0), exact.Blocks[0].Confidence, 1e-9)

	// Six substitutions out of ten: similarity 0.4, matched but penalized.
	weak := e.Fuse(result("a", block("abcdefghij", 0.8)), result("b", block("abcdxxxxxx", 0.8)))
	require.Len(t, weak.Blocks, 1)
	assert.Equal(t, model.SourceCombined, weak.Blocks[0].Source)
	assert.InDelta(t, 0.4, weak.Blocks[0].Similarity, 1e-9)
	assert.InDelta(t, 0.8*(1-0.2), weak.Blocks[0].Confidence, 1e-9)
}

func TestFuse_TextFromHigherWeightedConfidence(t *testing.T) {
	e := newTestEngine(t)

	// 0.3*0.95 = 0.285 vs 0.7*0.3 = 0.21: engine B's reading wins.
	fused := e.Fuse(result("a", block("醬油 208", 0.3)), result("b", block("醬油 200", 0.95)))
	require.Len(t, fused.Blocks, 1)
	assert.Equal(t, "醬油 200", fused.Blocks[0].Text)
}

func TestFuse_UnmatchedBlocksAreDiscounted(t *testing.T) {
	e := newTestEngine(t)

	fused := e.Fuse(result("a", block("文正 500", 0.9)), result("b", block("xyz", 0.6)))

	require.Len(t, fused.Blocks, 2)
	assert.Equal(t, model.SourceEngineAOnly, fused.Blocks[0].Source)
	assert.InDelta(t, 0.7*0.9+0.3*0.5, fused.Blocks[0].Confidence, 1e-9)
	assert.Nil(t, fused.Blocks[0].ConfidenceB)

	assert.Equal(t, model.SourceEngineBOnly, fused.Blocks[1].Source)
	assert.InDelta(t, 0.3*0.6+0.7*0.5, fused.Blocks[1].Confidence, 1e-9)
	assert.Nil(t, fused.Blocks[1].ConfidenceA)

	assert.Equal(t, "文正 500 xyz", fused.FullText)
	assert.InDelta(t, (fused.Blocks[0].Confidence+fused.Blocks[1].Confidence)/2, fused.OverallConfidence, 1e-9)
}

func TestFuse_EmptyInputs(t *testing.T) {
	e := newTestEngine(t)

	fused := e.Fuse(model.EngineResult{}, model.EngineResult{})
	assert.Empty(t, fused.Blocks)
	assert.Equal(t, "", fused.FullText)
	assert.Equal(t, 0.0, fused.OverallConfidence)

	onlyB := e.Fuse(model.EngineResult{}, result("b", block("文正", 0.5), block("500", 0.5)))
	assert.Len(t, onlyB.Blocks, 2)
}

func fusionCases() [][2]model.EngineResult {
	return [][2]model.EngineResult{
		{
			result("a", block("114年10月15日", 0.9), block("文正 500", 0.8), block("醬油 200", 0.7)),
			result("b", block("114年10月15日", 0.7), block("文正 508", 0.6)),
		},
		{
			result("a", block("ABC", 0.9)),
			result("b", block("ABD", 0.85), block("ABC", 0.4), block("zzz", 0.2)),
		},
		{
			result("a", block("abc", 0.5), block("def", 0.5)),
			result("b", block("xyz", 0.5), block("uvw", 0.5), block("rst", 0.5)),
		},
		{
			result("a"),
			result("b", block("惠瑛 300", 0.8)),
		},
		{
			result("a", block("加 800X50", 0.6), block("加 800X5O", 0.6)),
			result("b", block("加 800X50", 0.9)),
		},
	}
}

func TestFuse_BlockCountConservation(t *testing.T) {
	e := newTestEngine(t)

	for i, c := range fusionCases() {
		a, b := c[0], c[1]
		fused := e.Fuse(a, b)

		lo := max(len(a.Blocks), len(b.Blocks))
		hi := len(a.Blocks) + len(b.Blocks)
		assert.GreaterOrEqual(t, len(fused.Blocks), lo, "case %d", i)
		assert.LessOrEqual(t, len(fused.Blocks), hi, "case %d", i)

		anyMatch := false
		for _, ab := range a.Blocks {
			for _, bb := range b.Blocks {
				if Similarity(ab.Text, bb.Text) >= 0.3 {
					anyMatch = true
				}
			}
		}
		if !anyMatch {
			assert.Len(t, fused.Blocks, hi, "case %d", i)
		}
	}
}

// represented lists every input block a fused result accounts for, keyed by
// engine label and raw confidence, independent of which side was engine A.
func represented(fused model.FusedResult, labelA, labelB string) []string {
	var out []string
	for _, b := range fused.Blocks {
		if b.ConfidenceA != nil {
			out = append(out, labelA+":"+formatConf(*b.ConfidenceA))
		}
		if b.ConfidenceB != nil {
			out = append(out, labelB+":"+formatConf(*b.ConfidenceB))
		}
	}
	sort.Strings(out)
	return out
}

func formatConf(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

func TestFuse_EveryBlockRepresentedOnceRegardlessOfOrder(t *testing.T) {
	e := newTestEngine(t)

	for i, c := range fusionCases() {
		a, b := c[0], c[1]
		ab := e.Fuse(a, b)
		ba := e.Fuse(b, a)

		assert.Equal(t, represented(ab, "a", "b"), represented(ba, "b", "a"), "case %d", i)

		counted := 0
		for _, blk := range ab.Blocks {
			if blk.ConfidenceA != nil {
				counted++
			}
			if blk.ConfidenceB != nil {
				counted++
			}
		}
		assert.Equal(t, len(a.Blocks)+len(b.Blocks), counted, "case %d", i)
	}
}

func TestBestSingle(t *testing.T) {
	e := newTestEngine(t)

	a := result("vision", block("文正 500", 0.6))
	a.FullText = "文正 500"
	b := result("tesseract", block("文正 500", 0.9))
	b.FullText = "文正 500\n"

	got := e.bestSingle(a, b)
	assert.Equal(t, "tesseract", got.PrimaryEngine)
	assert.Equal(t, b.FullText, got.FullText)
	require.Len(t, got.Blocks, 1)
	assert.Equal(t, model.SourceEngineBOnly, got.Blocks[0].Source)

	got = e.bestSingle(b, a)
	assert.Equal(t, "tesseract", got.PrimaryEngine)
	assert.Equal(t, model.SourceEngineAOnly, got.Blocks[0].Source)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.EngineAWeight, cfg.EngineBWeight = 0, 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MinSimilarity = 1.5
	assert.Error(t, cfg.Validate())

	_, err := NewEngine(cfg, nil)
	assert.Error(t, err)
}
