package ocr

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/Veraticus/ledgerscan/internal/model"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromWords(t *testing.T) {
	box := &model.BoundingBox{X: 1, Y: 2, W: 3, H: 4}
	words := []Word{
		{Text: "文正", Confidence: 90, Box: box},
		{Text: " 500 ", Confidence: 70},
		{Text: "", Confidence: 95},
		{Text: "~", Confidence: 0},
		{Text: "x", Confidence: -1},
	}

	tests := []struct {
		name     string
		fullText string
		wantText string
	}{
		{name: "engine text kept", fullText: "文正 500\n", wantText: "文正 500\n"},
		{name: "joined words when engine text is empty", fullText: "  ", wantText: "文正 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromWords("tesseract", tt.fullText, words)

			assert.Equal(t, "tesseract", got.Engine)
			assert.Equal(t, tt.wantText, got.FullText)
			require.Len(t, got.Blocks, 2)
			assert.Equal(t, model.OCRBlock{Text: "文正", Confidence: 0.9, BoundingBox: box}, got.Blocks[0])
			assert.Equal(t, "500", got.Blocks[1].Text)
			assert.InDelta(t, 0.8, got.OverallConfidence, 1e-9)
		})
	}
}

func TestFromWords_Empty(t *testing.T) {
	got := FromWords("tesseract", "", nil)

	assert.NotNil(t, got.Blocks)
	assert.Empty(t, got.Blocks)
	assert.Zero(t, got.OverallConfidence)
	assert.Empty(t, got.FullText)
}

func encodeTestImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: 120, B: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func TestPrepare(t *testing.T) {
	tests := []struct {
		name  string
		opts  PrepOptions
		w, h  int
		wantW int
		wantH int
	}{
		{name: "defaults keep small image size", opts: DefaultPrepOptions(), w: 40, h: 20, wantW: 40, wantH: 20},
		{name: "large image scaled down", opts: PrepOptions{MaxDimension: 50}, w: 200, h: 100, wantW: 50, wantH: 25},
		{name: "no adjustments", opts: PrepOptions{}, w: 30, h: 30, wantW: 30, wantH: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Prepare(encodeTestImage(t, tt.w, tt.h), tt.opts)
			require.NoError(t, err)

			img, err := imaging.Decode(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, img.Bounds().Dx())
			assert.Equal(t, tt.wantH, img.Bounds().Dy())

			r, g, b, _ := img.At(img.Bounds().Dx()/2, img.Bounds().Dy()/2).RGBA()
			assert.Equal(t, r, g)
			assert.Equal(t, g, b)
		})
	}
}

func TestPrepare_InvalidImage(t *testing.T) {
	_, err := Prepare([]byte("not an image"), DefaultPrepOptions())
	assert.Error(t, err)
}
