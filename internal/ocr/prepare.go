package ocr

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// PrepOptions controls image preparation before recognition.
type PrepOptions struct {
	// MaxDimension bounds the longer side; larger images are scaled down.
	// Zero keeps the original size.
	MaxDimension int
	// Contrast is a percentage in [-100, 100].
	Contrast float64
	// Sharpen is the gaussian sigma; zero disables sharpening.
	Sharpen float64
}

// DefaultPrepOptions returns the preparation used for handwritten ledgers.
func DefaultPrepOptions() PrepOptions {
	return PrepOptions{
		MaxDimension: 3000,
		Contrast:     20,
		Sharpen:      1.0,
	}
}

// Prepare decodes an image, honours its EXIF orientation, converts it to
// grayscale, applies the configured adjustments and re-encodes it as PNG.
func Prepare(data []byte, opts PrepOptions) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	out := imaging.Grayscale(img)
	if opts.MaxDimension > 0 {
		out = imaging.Fit(out, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)
	}
	if opts.Contrast != 0 {
		out = imaging.AdjustContrast(out, opts.Contrast)
	}
	if opts.Sharpen > 0 {
		out = imaging.Sharpen(out, opts.Sharpen)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
