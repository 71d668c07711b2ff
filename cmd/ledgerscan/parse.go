package main

import (
	"fmt"

	"github.com/Veraticus/ledgerscan/internal/cli"
	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [FILE]",
		Short: "Parse ledger text without running OCR",
		Long: `Parse already-transcribed ledger text (from FILE or stdin), then
normalize, parse and validate it exactly as scan does with OCR output.

Useful for re-checking a transcription by hand or testing keyword lists.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runParse,
	}

	cmd.Flags().Float64("confidence", 1.0, "OCR confidence to validate against (0-1)")
	cmd.Flags().StringSlice("keywords", nil, "expense keywords (overrides parser.expense_keywords)")
	cmd.Flags().Bool("json", false, "print the result as JSON")
	cmd.Flags().Bool("save", false, "store the result in the results database")

	return cmd
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	confidence, _ := cmd.Flags().GetFloat64("confidence")
	if confidence < 0 || confidence > 1 {
		return common.NewUserError(fmt.Sprintf("--confidence must be between 0 and 1, got %v", confidence), common.ErrInvalidConfig)
	}
	keywords, _ := cmd.Flags().GetStringSlice("keywords")
	asJSON, _ := cmd.Flags().GetBool("json")
	save, _ := cmd.Flags().GetBool("save")

	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	text, source, err := readInput(name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}

	p, err := newPipeline(ctx, cfg, false)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	result := p.ProcessText(id, string(text), confidence, keywords)

	if save {
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.MarkProcessed(ctx, id, source, result); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, result)
	}
	_, err = fmt.Fprintln(out, cli.RenderResult(source, result))
	return err
}
