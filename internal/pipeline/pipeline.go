// Package pipeline sequences recognition, fusion, normalization, parsing and
// validation for one ledger image and assembles the result envelope.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/fusion"
	"github.com/Veraticus/ledgerscan/internal/ledger"
	"github.com/Veraticus/ledgerscan/internal/model"
	"github.com/Veraticus/ledgerscan/internal/normalize"
	"github.com/Veraticus/ledgerscan/internal/validate"
)

// Recognizer is an OCR engine.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (model.EngineResult, error)
}

// Options configures a Pipeline. Either engine may be nil; Process needs at
// least one.
type Options struct {
	EngineA    Recognizer
	EngineB    Recognizer
	Logger     *slog.Logger
	Parser     ledger.Config
	Fusion     fusion.Config
	Validation validate.Config
}

// Pipeline processes ledger images and texts. It is safe for concurrent use.
type Pipeline struct {
	engineA   Recognizer
	engineB   Recognizer
	fusion    *fusion.Engine
	parser    *ledger.Parser
	validator *validate.Validator
	logger    *slog.Logger
	fusionCfg fusion.Config
	review    float64
}

// New builds a pipeline from its components' configuration.
func New(opts Options) (*Pipeline, error) {
	logger := common.OrDefault(opts.Logger)

	fe, err := fusion.NewEngine(opts.Fusion, logger)
	if err != nil {
		return nil, err
	}
	v, err := validate.NewValidator(opts.Validation, logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		engineA:   opts.EngineA,
		engineB:   opts.EngineB,
		fusion:    fe,
		parser:    ledger.NewParser(opts.Parser, logger),
		validator: v,
		logger:    logger,
		fusionCfg: opts.Fusion,
		review:    opts.Validation.ReviewThreshold,
	}, nil
}

// engineRun is the outcome of one engine on one image.
type engineRun struct {
	err    error
	name   string
	result model.EngineResult
}

// Process recognizes one image with both engines, fuses their output and
// parses and validates the ledger. expenseKeywords overrides the configured
// list when non-nil. The result is always either complete or an explicit
// failure.
func (p *Pipeline) Process(ctx context.Context, id string, image []byte, expenseKeywords []string) model.Result {
	if p.engineA == nil && p.engineB == nil {
		return p.fail(id, fmt.Errorf("%w: no OCR engine configured", common.ErrNoUsableOCR), nil)
	}

	runA, runB := p.recognize(ctx, image)

	engineErrors := map[string]string{}
	for _, r := range []*engineRun{runA, runB} {
		if r != nil && r.err != nil {
			engineErrors[r.name] = r.err.Error()
			p.logger.Warn("OCR engine failed", "id", id, "engine", r.name, "error", r.err)
		}
	}

	okA := runA != nil && runA.err == nil
	okB := runB != nil && runB.err == nil

	var (
		fused model.FusedResult
		text  string
	)
	switch {
	case okA && okB:
		fused = p.fusion.Fuse(runA.result, runB.result)
		text = p.parseText(runA.result, runB.result)
	case okA:
		fused = model.SingleEngine(runA.result, model.SourceEngineAOnly, p.fusionCfg.EngineAWeight)
		text = runA.result.FullText
	case okB:
		fused = model.SingleEngine(runB.result, model.SourceEngineBOnly, p.fusionCfg.EngineBWeight)
		text = runB.result.FullText
	default:
		if err := ctx.Err(); err != nil {
			return p.fail(id, err, engineErrors)
		}
		return p.fail(id, common.ErrNoUsableOCR, engineErrors)
	}

	result := p.ProcessText(id, text, fused.OverallConfidence, expenseKeywords)
	if result.Status == model.StatusSuccess {
		result.Fused = &fused
	}
	if len(engineErrors) > 0 {
		result.EngineErrors = engineErrors
	}
	return result
}

// recognize runs the configured engines concurrently. A nil run means the
// engine is not configured.
func (p *Pipeline) recognize(ctx context.Context, image []byte) (runA, runB *engineRun) {
	var wg sync.WaitGroup
	start := func(r Recognizer, dst **engineRun) {
		if r == nil {
			return
		}
		run := &engineRun{name: r.Name()}
		*dst = run
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					run.err = fmt.Errorf("%w: %s panicked: %v", common.ErrEngineUnavailable, run.name, rec)
				}
			}()
			started := time.Now()
			run.result, run.err = r.Recognize(ctx, image)
			if run.result.Engine == "" {
				run.result.Engine = run.name
			}
			p.logger.Debug("engine finished", "engine", run.name, "duration", time.Since(started), "error", run.err)
		}()
	}

	start(p.engineA, &runA)
	start(p.engineB, &runB)
	wg.Wait()
	return runA, runB
}

// parseText picks the engine text to parse when both engines succeeded:
// fused blocks do not keep reading order, so one engine's own text is
// authoritative. The engine with the higher trust-weighted confidence wins,
// ties going to engine A; blank text never wins.
func (p *Pipeline) parseText(a, b model.EngineResult) string {
	if strings.TrimSpace(a.FullText) == "" {
		return b.FullText
	}
	if strings.TrimSpace(b.FullText) == "" {
		return a.FullText
	}
	if b.OverallConfidence*p.fusionCfg.EngineBWeight > a.OverallConfidence*p.fusionCfg.EngineAWeight {
		return b.FullText
	}
	return a.FullText
}

// ProcessText normalizes, parses and validates already recognized text,
// as when reprocessing a stored OCR result.
func (p *Pipeline) ProcessText(id, text string, confidence float64, expenseKeywords []string) (result model.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = p.fail(id, fmt.Errorf("post-OCR processing failed: %v", r), nil)
		}
	}()

	record := p.parser.Parse(normalize.Text(text), expenseKeywords)
	record = p.validator.Validate(record, confidence)
	return p.success(id, record, confidence)
}

// Recompute rebuilds a record's aggregates from its edited items and
// validates it again without touching any text.
func (p *Pipeline) Recompute(record model.LedgerRecord, confidence float64) model.LedgerRecord {
	return p.validator.Validate(ledger.Recompute(record), confidence)
}

func (p *Pipeline) success(id string, record model.LedgerRecord, confidence float64) model.Result {
	r := model.Result{
		ID:          id,
		Status:      model.StatusSuccess,
		Record:      &record,
		Confidence:  confidence,
		NeedsReview: record.HasAnomalies || confidence < p.review,
		ProcessedAt: time.Now(),
	}
	p.logger.Info("ledger processed",
		"id", id,
		"items", len(record.Items),
		"anomalies", len(record.Anomalies),
		"confidence", confidence,
		"needs_review", r.NeedsReview)
	return r
}

func (p *Pipeline) fail(id string, err error, engineErrors map[string]string) model.Result {
	p.logger.Error("ledger processing failed", "id", id, "error", err)
	r := model.Failed(id, err.Error())
	if len(engineErrors) > 0 {
		r.EngineErrors = engineErrors
	}
	return r
}
