package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/ledgerscan/internal/cli"
	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/model"
	"github.com/spf13/cobra"
)

func recomputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute IMAGE_ID",
		Short: "Re-total and re-validate a stored record",
		Long: `Recompute a stored ledger record after its items were corrected.

With --items, the record's items are replaced by the JSON array in the file
(the same shape as "items" in history show --json). Totals, discounts and
balance are recalculated and the record is validated again; parse anomalies
are kept and validation anomalies replaced.

With --reparse, the stored OCR text is parsed again from scratch using the
current configuration.`,
		Args: cobra.ExactArgs(1),
		RunE: runRecompute,
	}

	cmd.Flags().String("items", "", "JSON file with corrected items (- for stdin)")
	cmd.Flags().Bool("reparse", false, "parse the stored OCR text again")
	cmd.Flags().StringSlice("keywords", nil, "expense keywords for --reparse")
	cmd.Flags().Bool("json", false, "print the result as JSON")

	return cmd
}

func runRecompute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	itemsFile, _ := cmd.Flags().GetString("items")
	reparse, _ := cmd.Flags().GetBool("reparse")
	keywords, _ := cmd.Flags().GetStringSlice("keywords")
	asJSON, _ := cmd.Flags().GetBool("json")

	if itemsFile != "" && reparse {
		return common.NewUserError("--items and --reparse cannot be combined", nil)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	id, err := resolveID(ctx, store, args[0])
	if err != nil {
		return err
	}
	stored, err := store.GetResult(ctx, id)
	if err != nil {
		return err
	}
	if stored.Result.Record == nil {
		return common.NewUserError(fmt.Sprintf("image %s has no record to recompute (status %s)", id, stored.Result.Status), nil)
	}

	p, err := newPipeline(ctx, cfg, false)
	if err != nil {
		return err
	}

	result := stored.Result
	switch {
	case reparse:
		reparsed := p.ProcessText(id, result.Record.RawText, result.Confidence, keywords)
		reparsed.Fused = result.Fused
		reparsed.EngineErrors = result.EngineErrors
		result = reparsed

	default:
		record := *result.Record
		if itemsFile != "" {
			data, source, err := readInput(itemsFile)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", source, err)
			}
			var items []model.LedgerItem
			if err := json.Unmarshal(data, &items); err != nil {
				return common.NewUserError(fmt.Sprintf("%s is not a JSON array of items", source), err)
			}
			record.Items = items
		}

		record = p.Recompute(record, result.Confidence)
		result.Record = &record
		result.NeedsReview = record.HasAnomalies || result.Confidence < cfg.Validation.ReviewThreshold
		result.ProcessedAt = time.Now()
	}

	if err := store.MarkProcessed(ctx, id, stored.Source, result); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, result)
	}
	_, err = fmt.Fprintln(out, cli.RenderResult(stored.Source, result))
	return err
}
