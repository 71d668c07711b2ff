// Package fusion reconciles the output of two independent OCR engines into a
// single transcription with per-block confidence and provenance.
package fusion

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/model"
)

// Config holds the fusion weights and thresholds.
type Config struct {
	EngineAWeight   float64
	EngineBWeight   float64
	MinSimilarity   float64
	HighSimilarity  float64
	LowSimilarity   float64
	AgreementBoost  float64
	ConflictPenalty float64
	DefaultBelief   float64
}

// DefaultConfig returns the standard trust weights and thresholds.
func DefaultConfig() Config {
	return Config{
		EngineAWeight:   0.7,
		EngineBWeight:   0.3,
		MinSimilarity:   0.3,
		HighSimilarity:  0.8,
		LowSimilarity:   0.5,
		AgreementBoost:  0.1,
		ConflictPenalty: 0.2,
		DefaultBelief:   0.5,
	}
}

// Validate checks the configuration for values fusion cannot work with.
func (c Config) Validate() error {
	if c.EngineAWeight < 0 || c.EngineBWeight < 0 || c.EngineAWeight+c.EngineBWeight == 0 {
		return fmt.Errorf("%w: engine weights must be non-negative and not both zero", common.ErrInvalidConfig)
	}
	for name, v := range map[string]float64{
		"min_similarity":   c.MinSimilarity,
		"high_similarity":  c.HighSimilarity,
		"low_similarity":   c.LowSimilarity,
		"conflict_penalty": c.ConflictPenalty,
		"default_belief":   c.DefaultBelief,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: fusion.%s must be within [0,1], got %v", common.ErrInvalidConfig, name, v)
		}
	}
	if c.AgreementBoost < 0 {
		return fmt.Errorf("%w: fusion.agreement_boost cannot be negative", common.ErrInvalidConfig)
	}
	return nil
}

// Engine fuses pairs of engine results. It holds no per-call state and is
// safe for concurrent use.
type Engine struct {
	logger *slog.Logger
	cfg    Config
}

// NewEngine creates a fusion engine.
func NewEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, logger: common.OrDefault(logger)}, nil
}

// Fuse combines two engine results for the same image. Every input block is
// represented exactly once in the output, either alone or inside one
// combined block. If fusion fails internally the result with the higher
// overall confidence is returned instead.
func (e *Engine) Fuse(a, b model.EngineResult) (fused model.FusedResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("fusion failed, falling back to best single engine", "panic", r)
			fused = e.bestSingle(a, b)
		}
	}()

	blocks := make([]model.FusedBlock, 0, len(a.Blocks)+len(b.Blocks))
	matched := make([]bool, len(b.Blocks))

	for _, ab := range a.Blocks {
		best, bestSim := -1, 0.0
		for j, bb := range b.Blocks {
			if matched[j] {
				continue
			}
			if sim := Similarity(ab.Text, bb.Text); sim > bestSim {
				best, bestSim = j, sim
			}
		}

		if best >= 0 && bestSim > e.cfg.MinSimilarity {
			matched[best] = true
			blocks = append(blocks, e.combine(ab, b.Blocks[best], bestSim))
			continue
		}
		blocks = append(blocks, e.alone(ab, model.SourceEngineAOnly))
	}

	for j, bb := range b.Blocks {
		if !matched[j] {
			blocks = append(blocks, e.alone(bb, model.SourceEngineBOnly))
		}
	}

	texts := make([]string, len(blocks))
	for i, blk := range blocks {
		texts[i] = blk.Text
	}

	fused = model.FusedResult{
		FullText:          strings.Join(texts, " "),
		Blocks:            blocks,
		OverallConfidence: overallConfidence(blocks),
	}

	e.logger.Debug("fusion completed",
		"blocks_a", len(a.Blocks),
		"blocks_b", len(b.Blocks),
		"blocks_out", len(blocks),
		"confidence", fused.OverallConfidence)

	return fused
}

// combine merges a matched pair. The blended confidence is raised when the
// engines agree strongly and lowered when they barely agree.
func (e *Engine) combine(a, b model.OCRBlock, similarity float64) model.FusedBlock {
	wa, wb := e.cfg.EngineAWeight, e.cfg.EngineBWeight
	weightedA, weightedB := a.Confidence*wa, b.Confidence*wb

	conf := (weightedA + weightedB) / (wa + wb)
	switch {
	case similarity >= e.cfg.HighSimilarity:
		conf *= 1 + e.cfg.AgreementBoost*similarity
	case similarity < e.cfg.LowSimilarity:
		conf *= 1 - e.cfg.ConflictPenalty
	}

	text, box := a.Text, a.BoundingBox
	if weightedB > weightedA {
		text, box = b.Text, b.BoundingBox
	}
	if box == nil {
		box = a.BoundingBox
		if box == nil {
			box = b.BoundingBox
		}
	}

	ca, cb := a.Confidence, b.Confidence
	return model.FusedBlock{
		Text:        text,
		Confidence:  clamp(conf),
		BoundingBox: box,
		Source:      model.SourceCombined,
		ConfidenceA: &ca,
		ConfidenceB: &cb,
		Similarity:  similarity,
		WeightA:     wa,
		WeightB:     wb,
	}
}

// alone emits an unmatched block, mixing its confidence with the default
// belief that it might be wrong according to its engine's weight.
func (e *Engine) alone(blk model.OCRBlock, source model.BlockSource) model.FusedBlock {
	w := e.cfg.EngineAWeight
	if source == model.SourceEngineBOnly {
		w = e.cfg.EngineBWeight
	}

	c := blk.Confidence
	out := model.FusedBlock{
		Text:        blk.Text,
		Confidence:  clamp(w*c + (1-w)*e.cfg.DefaultBelief),
		BoundingBox: blk.BoundingBox,
		Source:      source,
	}
	if source == model.SourceEngineBOnly {
		out.ConfidenceB = &c
		out.WeightB = w
	} else {
		out.ConfidenceA = &c
		out.WeightA = w
	}
	return out
}

func (e *Engine) bestSingle(a, b model.EngineResult) model.FusedResult {
	if b.OverallConfidence > a.OverallConfidence {
		return model.SingleEngine(b, model.SourceEngineBOnly, e.cfg.EngineBWeight)
	}
	return model.SingleEngine(a, model.SourceEngineAOnly, e.cfg.EngineAWeight)
}

func overallConfidence(blocks []model.FusedBlock) float64 {
	if len(blocks) == 0 {
		return 0
	}
	var sum float64
	for _, b := range blocks {
		sum += b.Confidence
	}
	return sum / float64(len(blocks))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
