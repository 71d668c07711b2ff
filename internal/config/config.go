package config

import (
	"fmt"

	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/fusion"
	"github.com/Veraticus/ledgerscan/internal/ledger"
	"github.com/Veraticus/ledgerscan/internal/ocr/vision"
	"github.com/Veraticus/ledgerscan/internal/sheets"
	"github.com/Veraticus/ledgerscan/internal/validate"
	"github.com/spf13/viper"
)

// Config is the complete application configuration. It is built once by the
// CLI and handed to each component constructor.
type Config struct {
	Logging    LoggingConfig
	Storage    StorageConfig
	OCR        OCRConfig
	Parser     ledger.Config
	Sheets     sheets.Config
	Validation validate.Config
	Fusion     fusion.Config
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// StorageConfig locates the results database.
type StorageConfig struct {
	Path string
}

// OCRConfig configures both recognition engines.
type OCRConfig struct {
	Tesseract TesseractConfig
	Vision    vision.Config
}

// VisionEnabled reports whether Vision credentials are configured.
func (c OCRConfig) VisionEnabled() bool {
	return c.Vision.APIKey != "" || c.Vision.CredentialsFile != ""
}

// TesseractConfig mirrors the Tesseract adapter settings without importing
// the cgo bindings.
type TesseractConfig struct {
	TessdataPrefix string
	Languages      []string
	Enabled        bool
	Preprocess     bool
}

// SetDefaults registers every recognized key with its default value.
func SetDefaults(v *viper.Viper) {
	f := fusion.DefaultConfig()
	v.SetDefault("fusion.engineA_weight", f.EngineAWeight)
	v.SetDefault("fusion.engineB_weight", f.EngineBWeight)
	v.SetDefault("fusion.min_similarity", f.MinSimilarity)
	v.SetDefault("fusion.high_similarity", f.HighSimilarity)
	v.SetDefault("fusion.low_similarity", f.LowSimilarity)
	v.SetDefault("fusion.agreement_boost", f.AgreementBoost)
	v.SetDefault("fusion.conflict_penalty", f.ConflictPenalty)
	v.SetDefault("fusion.default_belief", f.DefaultBelief)

	val := validate.DefaultConfig()
	v.SetDefault("validation.mismatch_tolerance", val.MismatchTolerance)
	v.SetDefault("validation.expected_tax_rate", val.ExpectedTaxRate)
	v.SetDefault("validation.tax_rate_tolerance", val.TaxRateTolerance)
	v.SetDefault("validation.low_confidence_threshold", val.LowConfidenceThreshold)
	v.SetDefault("validation.review_threshold", val.ReviewThreshold)
	v.SetDefault("validation.tax_keywords", val.TaxKeywords)
	v.SetDefault("validation.check_total_mismatch", val.CheckTotalMismatch)
	v.SetDefault("validation.check_discount_mismatch", val.CheckDiscountMismatch)
	v.SetDefault("validation.check_tax_rate", val.CheckTaxRate)
	v.SetDefault("validation.check_low_confidence", val.CheckLowConfidence)

	p := ledger.DefaultConfig()
	v.SetDefault("parser.expense_keywords", p.ExpenseKeywords)
	v.SetDefault("parser.transfer_marker", p.TransferMarker)

	vis := vision.DefaultConfig()
	v.SetDefault("ocr.vision.feature", vis.Feature)
	v.SetDefault("ocr.vision.language_hints", vis.LanguageHints)
	v.SetDefault("ocr.vision.requests_per_second", vis.RequestsPerSecond)
	v.SetDefault("ocr.vision.retry_attempts", vis.RetryAttempts)
	v.SetDefault("ocr.vision.retry_delay", vis.RetryDelay)

	v.SetDefault("ocr.tesseract.enabled", true)
	v.SetDefault("ocr.tesseract.languages", []string{"chi_tra", "eng"})
	v.SetDefault("ocr.tesseract.preprocess", true)

	v.SetDefault("storage.path", DefaultStoragePath())

	s := sheets.DefaultConfig()
	v.SetDefault("sheets.spreadsheet_name", s.SpreadsheetName)
	v.SetDefault("sheets.time_zone", s.TimeZone)
	v.SetDefault("sheets.batch_size", s.BatchSize)
	v.SetDefault("sheets.retry_attempts", s.RetryAttempts)
	v.SetDefault("sheets.retry_delay", s.RetryDelay)
	v.SetDefault("sheets.enable_formatting", s.EnableFormatting)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load registers defaults on v, reads the configuration and validates it.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	cfg := Config{
		Fusion: fusion.Config{
			EngineAWeight:   v.GetFloat64("fusion.engineA_weight"),
			EngineBWeight:   v.GetFloat64("fusion.engineB_weight"),
			MinSimilarity:   v.GetFloat64("fusion.min_similarity"),
			HighSimilarity:  v.GetFloat64("fusion.high_similarity"),
			LowSimilarity:   v.GetFloat64("fusion.low_similarity"),
			AgreementBoost:  v.GetFloat64("fusion.agreement_boost"),
			ConflictPenalty: v.GetFloat64("fusion.conflict_penalty"),
			DefaultBelief:   v.GetFloat64("fusion.default_belief"),
		},
		Validation: validate.Config{
			TaxKeywords:            v.GetStringSlice("validation.tax_keywords"),
			MismatchTolerance:      v.GetFloat64("validation.mismatch_tolerance"),
			ExpectedTaxRate:        v.GetFloat64("validation.expected_tax_rate"),
			TaxRateTolerance:       v.GetFloat64("validation.tax_rate_tolerance"),
			LowConfidenceThreshold: v.GetFloat64("validation.low_confidence_threshold"),
			ReviewThreshold:        v.GetFloat64("validation.review_threshold"),
			CheckTotalMismatch:     v.GetBool("validation.check_total_mismatch"),
			CheckDiscountMismatch:  v.GetBool("validation.check_discount_mismatch"),
			CheckTaxRate:           v.GetBool("validation.check_tax_rate"),
			CheckLowConfidence:     v.GetBool("validation.check_low_confidence"),
		},
		Parser: ledger.Config{
			ExpenseKeywords: v.GetStringSlice("parser.expense_keywords"),
			TransferMarker:  v.GetString("parser.transfer_marker"),
		},
		OCR: OCRConfig{
			Vision: vision.Config{
				APIKey:            v.GetString("ocr.vision.api_key"),
				CredentialsFile:   ExpandPath(v.GetString("ocr.vision.credentials_file")),
				Endpoint:          v.GetString("ocr.vision.endpoint"),
				Feature:           v.GetString("ocr.vision.feature"),
				LanguageHints:     v.GetStringSlice("ocr.vision.language_hints"),
				RequestsPerSecond: v.GetFloat64("ocr.vision.requests_per_second"),
				RetryAttempts:     v.GetInt("ocr.vision.retry_attempts"),
				RetryDelay:        v.GetDuration("ocr.vision.retry_delay"),
			},
			Tesseract: TesseractConfig{
				Enabled:        v.GetBool("ocr.tesseract.enabled"),
				Languages:      v.GetStringSlice("ocr.tesseract.languages"),
				Preprocess:     v.GetBool("ocr.tesseract.preprocess"),
				TessdataPrefix: ExpandPath(v.GetString("ocr.tesseract.tessdata_prefix")),
			},
		},
		Storage: StorageConfig{
			Path: ExpandPath(v.GetString("storage.path")),
		},
		Sheets: loadSheets(v),
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section except Sheets, whose credentials are only
// required by the export command.
func (c Config) Validate() error {
	if err := c.Fusion.Validate(); err != nil {
		return err
	}
	if err := c.Validation.Validate(); err != nil {
		return err
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("%w: invalid log format: %s", common.ErrInvalidConfig, c.Logging.Format)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path", common.ErrMissingConfig)
	}
	if c.OCR.Tesseract.Enabled && len(c.OCR.Tesseract.Languages) == 0 {
		return fmt.Errorf("%w: ocr.tesseract.languages must not be empty", common.ErrInvalidConfig)
	}
	switch c.OCR.Vision.Feature {
	case vision.FeatureDocumentText, vision.FeatureText:
	default:
		return fmt.Errorf("%w: unknown ocr.vision.feature %q", common.ErrInvalidConfig, c.OCR.Vision.Feature)
	}
	if c.OCR.Vision.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: ocr.vision.requests_per_second must be positive", common.ErrInvalidConfig)
	}
	return nil
}
