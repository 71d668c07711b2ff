// Package tesseract adapts a local Tesseract installation to the recognizer
// interface used by the pipeline.
package tesseract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/model"
	"github.com/Veraticus/ledgerscan/internal/ocr"
	"github.com/otiai10/gosseract/v2"
)

// EngineName identifies this engine in results and logs.
const EngineName = "tesseract"

// Config holds the Tesseract settings.
type Config struct {
	Languages []string
	// TessdataPrefix overrides the trained data location.
	TessdataPrefix string
	Prep           ocr.PrepOptions
	Preprocess     bool
}

// DefaultConfig returns the settings for traditional Chinese ledgers.
func DefaultConfig() Config {
	return Config{
		Languages:  []string{"chi_tra", "eng"},
		Prep:       ocr.DefaultPrepOptions(),
		Preprocess: true,
	}
}

// Client runs Tesseract on images. A fresh Tesseract handle is created per
// call, so a Client is safe for concurrent use.
type Client struct {
	logger *slog.Logger
	cfg    Config
}

// New creates a Tesseract client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if len(cfg.Languages) == 0 {
		return nil, fmt.Errorf("%w: tesseract needs at least one language", common.ErrInvalidConfig)
	}
	return &Client{cfg: cfg, logger: common.OrDefault(logger)}, nil
}

// Name returns the engine name.
func (c *Client) Name() string {
	return EngineName
}

// Recognize runs Tesseract over one image.
func (c *Client) Recognize(ctx context.Context, image []byte) (model.EngineResult, error) {
	if len(image) == 0 {
		return model.EngineResult{}, fmt.Errorf("%s: empty image", EngineName)
	}
	if err := ctx.Err(); err != nil {
		return model.EngineResult{}, err
	}

	if c.cfg.Preprocess {
		prepared, err := ocr.Prepare(image, c.cfg.Prep)
		if err != nil {
			return model.EngineResult{}, fmt.Errorf("%s: %w", EngineName, err)
		}
		image = prepared
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if c.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(c.cfg.TessdataPrefix); err != nil {
			return model.EngineResult{}, fmt.Errorf("%s: tessdata prefix: %w", EngineName, err)
		}
	}
	if err := client.SetLanguage(c.cfg.Languages...); err != nil {
		return model.EngineResult{}, fmt.Errorf("%s: languages: %w", EngineName, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return model.EngineResult{}, fmt.Errorf("%s: page segmentation: %w", EngineName, err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return model.EngineResult{}, fmt.Errorf("%s: load image: %w", EngineName, err)
	}

	text, err := client.Text()
	if err != nil {
		return model.EngineResult{}, fmt.Errorf("%w: %s: %v", common.ErrEngineUnavailable, EngineName, err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return model.EngineResult{}, fmt.Errorf("%w: %s: %v", common.ErrEngineUnavailable, EngineName, err)
	}

	words := make([]ocr.Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, ocr.Word{
			Text:       b.Word,
			Confidence: b.Confidence,
			Box: &model.BoundingBox{
				X: b.Box.Min.X,
				Y: b.Box.Min.Y,
				W: b.Box.Dx(),
				H: b.Box.Dy(),
			},
		})
	}

	result := ocr.FromWords(EngineName, text, words)
	c.logger.Debug("tesseract OCR completed",
		"blocks", len(result.Blocks),
		"confidence", result.OverallConfidence)
	return result, nil
}
