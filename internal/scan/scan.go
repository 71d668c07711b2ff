// Package scan feeds ledger images through the pipeline and records the
// results, skipping images that were already processed successfully.
package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/model"
	"github.com/Veraticus/ledgerscan/internal/storage"
)

// Processor turns image bytes into a result. *pipeline.Pipeline satisfies it.
type Processor interface {
	Process(ctx context.Context, id string, image []byte, expenseKeywords []string) model.Result
}

// Store is the subset of the results store a scan needs.
type Store interface {
	GetResult(ctx context.Context, imageID string) (*storage.StoredResult, error)
	MarkProcessed(ctx context.Context, imageID, source string, result model.Result) error
}

// Outcome reports what happened to one image.
type Outcome struct {
	Path    string
	ImageID string
	Result  model.Result
	// Skipped is set when a successful result was already stored.
	Skipped bool
}

// Options configures a Scanner.
type Options struct {
	Logger *slog.Logger
	// ExpenseKeywords overrides the parser keywords for every image.
	ExpenseKeywords []string
	// Force reprocesses images that already have a successful result.
	Force bool
}

// Scanner processes image files one at a time.
type Scanner struct {
	processor Processor
	store     Store
	logger    *slog.Logger
	keywords  []string
	force     bool
}

// New creates a scanner.
func New(processor Processor, store Store, opts Options) *Scanner {
	return &Scanner{
		processor: processor,
		store:     store,
		logger:    common.OrDefault(opts.Logger),
		keywords:  opts.ExpenseKeywords,
		force:     opts.Force,
	}
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsImage reports whether path names a visible file with an image extension.
func IsImage(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return imageExtensions[strings.ToLower(filepath.Ext(base))]
}

// ImageID is the hex sha256 of the image bytes, so a renamed copy of the same
// photo is recognized as processed.
func ImageID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CollectImages expands files and directories into a sorted, de-duplicated
// list of image files. Directories are walked recursively and hidden
// directories are skipped.
func CollectImages(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var images []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			images = append(images, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", root, err)
		}
		if !info.IsDir() {
			if !IsImage(root) {
				return nil, common.NewUserError(fmt.Sprintf("%s is not a supported image file", root), nil)
			}
			add(filepath.Clean(root))
			continue
		}

		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if p != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if IsImage(p) {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}

	sort.Strings(images)
	return images, nil
}

// ScanFile processes a single image file and stores its result.
func (s *Scanner) ScanFile(ctx context.Context, path string) (Outcome, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return Outcome{Path: path}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	id := ImageID(data)
	out := Outcome{Path: path, ImageID: id}

	if !s.force {
		stored, getErr := s.store.GetResult(ctx, id)
		switch {
		case getErr == nil && stored.Result.Status == model.StatusSuccess:
			s.logger.Debug("image already processed", "path", path, "image_id", id)
			out.Result = stored.Result
			out.Skipped = true
			return out, nil
		case getErr != nil && !errors.Is(getErr, common.ErrNotFound):
			return out, fmt.Errorf("failed to look up %s: %w", path, getErr)
		}
	}

	out.Result = s.processor.Process(ctx, id, data, s.keywords)

	// An interrupted run is not a verdict on the image.
	if out.Result.Status == model.StatusFailed && ctx.Err() != nil {
		return out, ctx.Err()
	}

	if err := s.store.MarkProcessed(ctx, id, path, out.Result); err != nil {
		return out, fmt.Errorf("failed to store result for %s: %w", path, err)
	}
	return out, nil
}

// ScanAll processes files in order, calling onDone after each one. It stops
// at the first storage or read error, or when ctx is canceled.
func (s *Scanner) ScanAll(ctx context.Context, paths []string, onDone func(Outcome)) error {
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := s.ScanFile(ctx, p)
		if err != nil {
			return err
		}
		if onDone != nil {
			onDone(out)
		}
	}
	return nil
}
