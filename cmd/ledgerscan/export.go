package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/ledgerscan/internal/cli"
	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/config"
	"github.com/Veraticus/ledgerscan/internal/sheets"
	"github.com/Veraticus/ledgerscan/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored results to Google Sheets",
		Long: `Export stored ledger results to a Google Sheets spreadsheet.

The "Ledger" sheet is replaced on every export: one row per item, a summary
row per image with its totals and anomalies, and a row per failed image.

Authentication uses either a service account (sheets.service_account_path)
or OAuth2 (sheets.client_id, sheets.client_secret and sheets.refresh_token).
Run "ledgerscan export login" to obtain a refresh token.`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	cmd.Flags().Bool("review-only", false, "only export results that need review")
	cmd.Flags().Int("limit", 0, "maximum number of results to export (0 for all)")

	cmd.AddCommand(exportLoginCmd())
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sheetsCfg, err := config.LoadSheetsConfig(viper.GetViper())
	if err != nil {
		if errors.Is(err, common.ErrMissingConfig) {
			return common.NewUserError("Google Sheets is not configured; run \"ledgerscan export login\" or set sheets.service_account_path", err)
		}
		return common.NewUserError("invalid sheets configuration", err)
	}

	reviewOnly, _ := cmd.Flags().GetBool("review-only")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return common.NewUserError("--limit cannot be negative", nil)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	results, err := store.ListResults(ctx, storage.ListFilter{Limit: limit, NeedsReviewOnly: reviewOnly})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing to export."))
		return err
	}

	writer, err := sheets.NewWriter(ctx, *sheetsCfg, slog.Default())
	if err != nil {
		return err
	}

	spreadsheetID, err := writer.Write(ctx, results)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
		"Exported %d results to https://docs.google.com/spreadsheets/d/%s", len(results), spreadsheetID)))
	return err
}

func exportLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize Google Sheets access with OAuth2",
		Long: `Run the OAuth2 flow in a browser and save the refresh token as
sheets.refresh_token in the config file. Requires sheets.client_id and
sheets.client_secret.`,
		Args: cobra.NoArgs,
		RunE: runExportLogin,
	}

	cmd.Flags().String("callback", sheets.DefaultCallbackAddr, "address for the OAuth2 redirect listener")
	cmd.Flags().Duration("timeout", 5*time.Minute, "how long to wait for authorization")
	return cmd
}

func runExportLogin(cmd *cobra.Command, _ []string) error {
	clientID, clientSecret := config.SheetsOAuthClient(viper.GetViper())
	if clientID == "" || clientSecret == "" {
		return common.NewUserError("sheets.client_id and sheets.client_secret must be set before logging in", common.ErrMissingConfig)
	}

	callback, _ := cmd.Flags().GetString("callback")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	tokenFile := filepath.Join(config.ConfigDir(), "sheets-token.json")

	token, err := sheets.GetOrCreateToken(cmd.Context(), sheets.OAuth2Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    tokenFile,
		CallbackAddr: callback,
		Timeout:      timeout,
	})
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	if token.RefreshToken == "" {
		return common.NewUserError("Google did not return a refresh token; revoke the app's access and log in again", nil)
	}

	viper.Set("sheets.refresh_token", token.RefreshToken)
	if err := saveConfig(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Google Sheets access authorized"))
	return err
}

func saveConfig() error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = filepath.Join(config.ConfigDir(), "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o750); err != nil {
		return err
	}

	return viper.WriteConfigAs(configFile)
}
