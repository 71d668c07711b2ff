package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/config"
	"github.com/Veraticus/ledgerscan/internal/ocr/tesseract"
	"github.com/Veraticus/ledgerscan/internal/ocr/vision"
	"github.com/Veraticus/ledgerscan/internal/pipeline"
	"github.com/Veraticus/ledgerscan/internal/storage"
	"github.com/spf13/viper"
)

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, common.NewUserError("invalid configuration", err)
	}
	return cfg, nil
}

// openStore opens the results database and brings its schema up to date.
func openStore(ctx context.Context, cfg config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.Open(ctx, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database %s: %w", cfg.Storage.Path, err)
	}
	return store, nil
}

// resolveID accepts a full image id or a unique prefix of one.
func resolveID(ctx context.Context, store *storage.SQLiteStorage, prefix string) (string, error) {
	id, err := store.ResolveID(ctx, prefix)
	if err != nil {
		return "", common.NewUserError(fmt.Sprintf("cannot find image %q", prefix), err)
	}
	return id, nil
}

// newPipeline builds the processing pipeline. Engines are only constructed
// when withEngines is set; text-only commands do not need them.
func newPipeline(ctx context.Context, cfg config.Config, withEngines bool) (*pipeline.Pipeline, error) {
	opts := pipeline.Options{
		Logger:     slog.Default(),
		Parser:     cfg.Parser,
		Fusion:     cfg.Fusion,
		Validation: cfg.Validation,
	}

	if withEngines {
		if cfg.OCR.VisionEnabled() {
			client, err := vision.New(ctx, cfg.OCR.Vision, slog.Default())
			if err != nil {
				return nil, err
			}
			opts.EngineA = client
		}

		if cfg.OCR.Tesseract.Enabled {
			tcfg := tesseract.DefaultConfig()
			tcfg.Languages = cfg.OCR.Tesseract.Languages
			tcfg.Preprocess = cfg.OCR.Tesseract.Preprocess
			tcfg.TessdataPrefix = cfg.OCR.Tesseract.TessdataPrefix
			client, err := tesseract.New(tcfg, slog.Default())
			if err != nil {
				return nil, err
			}
			opts.EngineB = client
		}

		if opts.EngineA == nil && opts.EngineB == nil {
			return nil, common.NewUserError(
				"no OCR engine configured: set ocr.vision.api_key or ocr.vision.credentials_file, or enable ocr.tesseract",
				common.ErrEngineUnavailable)
		}
	}

	p, err := pipeline.New(opts)
	if err != nil {
		return nil, common.NewUserError("invalid pipeline configuration", err)
	}
	return p, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput reads a named file, or stdin for "-" or an empty name.
func readInput(name string) ([]byte, string, error) {
	if name == "" || name == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, "stdin", err
	}
	data, err := os.ReadFile(name) // #nosec G304
	return data, name, err
}
