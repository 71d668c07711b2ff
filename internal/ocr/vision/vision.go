// Package vision adapts the Google Cloud Vision API to the recognizer
// interface used by the pipeline.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/model"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

// EngineName identifies this engine in results and logs.
const EngineName = "google_vision"

// Feature types understood by the adapter.
const (
	FeatureDocumentText = "DOCUMENT_TEXT_DETECTION"
	FeatureText         = "TEXT_DETECTION"
)

// defaultAnnotationConfidence is used when TEXT_DETECTION returns no score.
const defaultAnnotationConfidence = 0.9

// Config holds the Vision client settings.
type Config struct {
	APIKey          string
	CredentialsFile string
	// Endpoint overrides the API base URL.
	Endpoint          string
	Feature           string
	LanguageHints     []string
	RequestsPerSecond float64
	RetryAttempts     int
	RetryDelay        time.Duration
}

// DefaultConfig returns the standard Vision settings.
func DefaultConfig() Config {
	return Config{
		Feature:           FeatureDocumentText,
		LanguageHints:     []string{"zh-Hant", "en"},
		RequestsPerSecond: 5,
		RetryAttempts:     3,
		RetryDelay:        time.Second,
	}
}

// Client recognizes text through the Vision images:annotate endpoint.
type Client struct {
	svc     *vision.Service
	limiter *rate.Limiter
	logger  *slog.Logger
	cfg     Config
}

// New creates a Vision client. Extra options are appended after the ones
// derived from cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger, extra ...option.ClientOption) (*Client, error) {
	switch cfg.Feature {
	case "":
		cfg.Feature = FeatureDocumentText
	case FeatureDocumentText, FeatureText:
	default:
		return nil, fmt.Errorf("%w: unknown vision feature %q", common.ErrInvalidConfig, cfg.Feature)
	}

	var opts []option.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, extra...)

	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrEngineUnavailable, EngineName, err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		svc:     svc,
		limiter: rate.NewLimiter(limit, 1),
		logger:  common.OrDefault(logger),
		cfg:     cfg,
	}, nil
}

// Name returns the engine name.
func (c *Client) Name() string {
	return EngineName
}

// Recognize sends one image to Vision and converts the annotation.
func (c *Client) Recognize(ctx context.Context, image []byte) (model.EngineResult, error) {
	if len(image) == 0 {
		return model.EngineResult{}, fmt.Errorf("%s: empty image", EngineName)
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*vision.Feature{{Type: c.cfg.Feature}},
		}},
	}
	if len(c.cfg.LanguageHints) > 0 {
		req.Requests[0].ImageContext = &vision.ImageContext{LanguageHints: c.cfg.LanguageHints}
	}

	var resp *vision.BatchAnnotateImagesResponse
	err := common.WithRetry(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		r, err := c.svc.Images.Annotate(req).Context(ctx).Do()
		if err != nil {
			return classifyError(err)
		}
		resp = r
		return nil
	}, common.RetryOptions{
		MaxAttempts:  c.cfg.RetryAttempts,
		InitialDelay: c.cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	})
	if err != nil {
		return model.EngineResult{}, fmt.Errorf("%s annotate: %w", EngineName, err)
	}

	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return model.EngineResult{Engine: EngineName, Blocks: []model.OCRBlock{}}, nil
	}
	annotation := resp.Responses[0]
	if annotation.Error != nil && annotation.Error.Message != "" {
		return model.EngineResult{}, fmt.Errorf("%s: api error %d: %s", EngineName, annotation.Error.Code, annotation.Error.Message)
	}

	var result model.EngineResult
	if c.cfg.Feature == FeatureText {
		result = fromTextAnnotations(annotation.TextAnnotations)
	} else {
		result = fromDocument(annotation.FullTextAnnotation)
	}

	c.logger.Debug("vision OCR completed",
		"blocks", len(result.Blocks),
		"confidence", result.OverallConfidence)
	return result, nil
}

// classifyError marks rate limiting and server failures as retryable and
// everything else as permanent.
func classifyError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", common.ErrRateLimit, err)
		case apiErr.Code >= http.StatusInternalServerError:
			return &common.RetryableError{Err: err, Retryable: true}
		default:
			return &common.RetryableError{Err: err, Retryable: false}
		}
	}
	if errors.Is(err, context.Canceled) {
		return &common.RetryableError{Err: err, Retryable: false}
	}
	return err
}

// fromDocument converts a DOCUMENT_TEXT_DETECTION annotation. Each Vision
// block becomes one OCR block whose confidence is the mean word confidence.
func fromDocument(doc *vision.TextAnnotation) model.EngineResult {
	result := model.EngineResult{Engine: EngineName, Blocks: []model.OCRBlock{}}
	if doc == nil {
		return result
	}
	result.FullText = doc.Text

	var total float64
	for _, page := range doc.Pages {
		for _, block := range page.Blocks {
			var (
				words []string
				conf  float64
			)
			for _, para := range block.Paragraphs {
				for _, word := range para.Words {
					var sb strings.Builder
					for _, sym := range word.Symbols {
						sb.WriteString(sym.Text)
					}
					words = append(words, sb.String())
					conf += word.Confidence
				}
			}
			if len(words) == 0 {
				continue
			}
			avg := conf / float64(len(words))
			if avg == 0 {
				avg = block.Confidence
			}
			result.Blocks = append(result.Blocks, model.OCRBlock{
				Text:        strings.Join(words, " "),
				Confidence:  avg,
				BoundingBox: boundingBox(block.BoundingBox),
			})
			total += avg
		}
	}
	if n := len(result.Blocks); n > 0 {
		result.OverallConfidence = total / float64(n)
	}
	return result
}

// fromTextAnnotations converts a TEXT_DETECTION response: the first
// annotation is the whole text, the rest are individual words.
func fromTextAnnotations(annotations []*vision.EntityAnnotation) model.EngineResult {
	result := model.EngineResult{Engine: EngineName, Blocks: []model.OCRBlock{}}
	if len(annotations) == 0 {
		return result
	}
	result.FullText = annotations[0].Description

	var total float64
	for _, a := range annotations[1:] {
		conf := a.Confidence
		if conf == 0 {
			conf = defaultAnnotationConfidence
		}
		result.Blocks = append(result.Blocks, model.OCRBlock{
			Text:        a.Description,
			Confidence:  conf,
			BoundingBox: boundingBox(a.BoundingPoly),
		})
		total += conf
	}
	if n := len(result.Blocks); n > 0 {
		result.OverallConfidence = total / float64(n)
	}
	return result
}

// boundingBox returns the axis-aligned box around a polygon.
func boundingBox(poly *vision.BoundingPoly) *model.BoundingBox {
	if poly == nil || len(poly.Vertices) == 0 {
		return nil
	}
	minX, minY := poly.Vertices[0].X, poly.Vertices[0].Y
	maxX, maxY := minX, minY
	for _, v := range poly.Vertices[1:] {
		minX, maxX = min(minX, v.X), max(maxX, v.X)
		minY, maxY = min(minY, v.Y), max(maxY, v.Y)
	}
	return &model.BoundingBox{
		X: int(minX),
		Y: int(minY),
		W: int(maxX - minX),
		H: int(maxY - minY),
	}
}
