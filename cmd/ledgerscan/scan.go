package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/ledgerscan/internal/cli"
	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/model"
	"github.com/Veraticus/ledgerscan/internal/scan"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan PATH...",
		Short: "OCR and reconcile ledger photos",
		Long: `Scan ledger photos (files or directories) with the configured OCR engines,
parse and validate each page, and store the results.

Images already processed successfully are skipped; identical photos are
recognized by content, not by name. Use --watch to keep scanning a
directory as new photos arrive.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScan,
	}

	cmd.Flags().Bool("force", false, "reprocess images that already have a result")
	cmd.Flags().Bool("watch", false, "keep watching the directory for new images")
	cmd.Flags().Duration("settle", scan.DefaultSettleDelay, "quiet period before a new file is scanned in watch mode")
	cmd.Flags().StringSlice("keywords", nil, "expense keywords (overrides parser.expense_keywords)")
	cmd.Flags().Bool("json", false, "print each result as JSON")
	cmd.Flags().Bool("details", false, "print the full record for every image")

	return cmd
}

type scanOutput struct {
	w       io.Writer
	asJSON  bool
	details bool
}

func (o scanOutput) print(out scan.Outcome) {
	switch {
	case o.asJSON:
		_ = writeJSON(o.w, out)
	case o.details:
		_, _ = fmt.Fprintln(o.w, cli.RenderResult(out.Path, out.Result))
	case out.Skipped:
		_, _ = fmt.Fprintln(o.w, cli.SubtleStyle.Render(out.Path+": already processed"))
	default:
		_, _ = fmt.Fprintln(o.w, cli.ResultLine(out.Path, out.Result))
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	watch, _ := cmd.Flags().GetBool("watch")
	settle, _ := cmd.Flags().GetDuration("settle")
	keywords, _ := cmd.Flags().GetStringSlice("keywords")
	asJSON, _ := cmd.Flags().GetBool("json")
	details, _ := cmd.Flags().GetBool("details")

	if watch && len(args) != 1 {
		return common.NewUserError("--watch takes exactly one directory", nil)
	}

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "ledgerscan scan "+strings.Join(args, " "))
	ctx, stop := handler.HandleInterrupts(cmd.Context())
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	p, err := newPipeline(ctx, cfg, true)
	if err != nil {
		return err
	}

	scanner := scan.New(p, store, scan.Options{
		Logger:          slog.Default(),
		ExpenseKeywords: keywords,
		Force:           force,
	})
	output := scanOutput{w: cmd.OutOrStdout(), asJSON: asJSON, details: details}

	if watch {
		return runWatch(ctx, scanner, args[0], settle, output)
	}

	images, err := scan.CollectImages(args)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No images found."))
		return nil
	}

	var outcomes []scan.Outcome
	bar := newProgressBar(cmd.ErrOrStderr(), len(images), asJSON)
	err = scanner.ScanAll(ctx, images, func(o scan.Outcome) {
		outcomes = append(outcomes, o)
		if bar != nil {
			_ = bar.Add(1)
		}
	})
	if bar != nil {
		_ = bar.Finish()
	}

	for _, o := range outcomes {
		output.print(o)
	}
	if !asJSON {
		printScanSummary(cmd.OutOrStdout(), outcomes)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) && handler.WasInterrupted() {
			return nil
		}
		return err
	}
	return nil
}

func runWatch(ctx context.Context, scanner *scan.Scanner, dir string, settle time.Duration, output scanOutput) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return common.NewUserError(fmt.Sprintf("%s is not a directory", dir), err)
	}

	// Pick up anything already sitting in the directory first.
	images, err := scan.CollectImages([]string{dir})
	if err != nil {
		return err
	}
	if err := scanner.ScanAll(ctx, images, output.print); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	return scanner.Watch(ctx, dir, settle, output.print, func(path string, err error) {
		slog.Error("failed to scan image", "path", path, "error", err)
	})
}

func newProgressBar(w io.Writer, total int, quiet bool) *progressbar.ProgressBar {
	if quiet || total < 2 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Scanning ledgers...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
}

func printScanSummary(w io.Writer, outcomes []scan.Outcome) {
	var processed, skipped, failed, review int
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			skipped++
		case o.Result.Status != model.StatusSuccess:
			failed++
		default:
			processed++
			if o.Result.NeedsReview {
				review++
			}
		}
	}

	msg := fmt.Sprintf("%d processed, %d skipped, %d failed, %d need review", processed, skipped, failed, review)
	if failed > 0 || review > 0 {
		_, _ = fmt.Fprintln(w, cli.FormatWarning(msg))
		return
	}
	_, _ = fmt.Fprintln(w, cli.FormatSuccess(msg))
}
