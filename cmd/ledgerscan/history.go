package main

import (
	"fmt"

	"github.com/Veraticus/ledgerscan/internal/cli"
	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/storage"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List processed images",
		Long: `List images whose results are stored, newest first.

Image ids in the listing are shortened; any unique prefix of an id is
accepted by show, forget and recompute.`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().Bool("review", false, "only results that need review")
	cmd.Flags().Bool("failed", false, "only failed images")
	cmd.Flags().Int("limit", 20, "maximum number of results (0 for all)")
	cmd.Flags().Bool("json", false, "print results as JSON")

	cmd.AddCommand(historyShowCmd(), historyStatsCmd(), historyForgetCmd(), historyClearCmd())
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	review, _ := cmd.Flags().GetBool("review")
	failed, _ := cmd.Flags().GetBool("failed")
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")
	if limit < 0 {
		return common.NewUserError("--limit cannot be negative", nil)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	results, err := store.ListResults(ctx, storage.ListFilter{
		Limit:           limit,
		NeedsReviewOnly: review,
		FailedOnly:      failed,
	})
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderHistory(results))
	return err
}

func historyShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show IMAGE_ID",
		Short: "Show the stored result for an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			asJSON, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig()
			if err != nil {
				return err
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

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stored)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderResult(stored.Source, stored.Result))
			return err
		},
	}
	cmd.Flags().Bool("json", false, "print the result as JSON")
	return cmd
}

func historyStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize stored results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderStats(stats))
			return err
		},
	}
}

func historyForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget IMAGE_ID",
		Short: "Delete the stored result so the image is scanned again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
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
			if err := store.Forget(ctx, id); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Forgot "+id))
			return err
		},
	}
}

func historyClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			yes, _ := cmd.Flags().GetBool("yes")

			if !yes {
				reader := cli.NewNonBlockingReader(cmd.InOrStdin())
				ok, err := cli.Confirm(ctx, reader, cmd.OutOrStdout(), "Delete all stored results?")
				if err != nil {
					return err
				}
				if !ok {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing deleted."))
					return err
				}
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.Clear(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted %d results", n)))
			return err
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	return cmd
}
