// Package model defines the core domain models used throughout the application.
package model

// BoundingBox locates a recognized block on the source image, in pixels.
type BoundingBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// OCRBlock is a single piece of recognized text with the engine's confidence.
type OCRBlock struct {
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
	Text        string       `json:"text"`
	Confidence  float64      `json:"confidence"`
}

// EngineResult is the complete output of one OCR engine for one image.
type EngineResult struct {
	Engine            string     `json:"engine,omitempty"`
	FullText          string     `json:"full_text"`
	Blocks            []OCRBlock `json:"blocks"`
	OverallConfidence float64    `json:"overall_confidence"`
}

// BlockSource records which engine(s) a fused block came from.
type BlockSource string

// Block sources.
const (
	SourceEngineAOnly BlockSource = "engine_a_only"
	SourceEngineBOnly BlockSource = "engine_b_only"
	SourceCombined    BlockSource = "combined"
)

// FusedBlock is an output block of fusion with its full provenance.
type FusedBlock struct {
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
	// ConfidenceA and ConfidenceB are the raw engine confidences; nil when
	// the engine did not contribute to this block.
	ConfidenceA *float64    `json:"confidence_a,omitempty"`
	ConfidenceB *float64    `json:"confidence_b,omitempty"`
	Source      BlockSource `json:"source"`
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	Similarity  float64     `json:"similarity,omitempty"`
	WeightA     float64     `json:"weight_a"`
	WeightB     float64     `json:"weight_b"`
}

// FusedResult is the reconciled output of two engine results.
type FusedResult struct {
	// PrimaryEngine names the engine whose result was returned verbatim when
	// fusion degraded to single-engine selection; empty after a real fusion.
	PrimaryEngine     string       `json:"primary_engine,omitempty"`
	FullText          string       `json:"full_text"`
	Blocks            []FusedBlock `json:"blocks"`
	OverallConfidence float64      `json:"overall_confidence"`
}

// SingleEngine wraps one engine's result as a FusedResult whose blocks all
// originate from that engine.
func SingleEngine(r EngineResult, source BlockSource, weight float64) FusedResult {
	blocks := make([]FusedBlock, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		c := b.Confidence
		fb := FusedBlock{
			Text:        b.Text,
			Confidence:  b.Confidence,
			BoundingBox: b.BoundingBox,
			Source:      source,
		}
		if source == SourceEngineBOnly {
			fb.ConfidenceB = &c
			fb.WeightB = weight
		} else {
			fb.ConfidenceA = &c
			fb.WeightA = weight
		}
		blocks = append(blocks, fb)
	}
	return FusedResult{
		PrimaryEngine:     r.Engine,
		FullText:          r.FullText,
		Blocks:            blocks,
		OverallConfidence: r.OverallConfidence,
	}
}
