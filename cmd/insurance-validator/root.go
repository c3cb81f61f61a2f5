package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/repository"
)

var (
	envFile string
	verbose bool
	inMem   bool
)

var rootCmd = &cobra.Command{
	Use:           "insurance-validator",
	Short:         "Extract and reconcile data from insurance document archives",
	Long:          "Analyze ZIP archives of insurance PDFs, extract personal and vehicle fields and report divergencies between documents.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "env file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&inMem, "inmem", false, "use an in-memory SQLite store instead of DB_URL")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration and builds the logger. Logs go to stderr so
// stdout stays clean for JSON output.
func setup(requireLLM, requireDB bool) (*common.Config, *slog.Logger, error) {
	if err := common.LoadDotEnv(envFile); err != nil {
		return nil, nil, err
	}
	cfg := common.LoadConfig()
	if inMem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = ":memory:"
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if requireLLM {
		if err := cfg.Validate(requireDB); err != nil {
			return nil, nil, err
		}
	} else if requireDB && cfg.Database.DSN == "" {
		return nil, nil, common.NewAppError(common.CodeConfig, "DB_URL is required", common.ErrInvalidInput)
	}
	return cfg, logger, nil
}

// openReports opens and migrates the configured store for read commands.
func openReports(ctx context.Context, cfg *common.Config, logger *slog.Logger) (repository.ReportRepository, func(), error) {
	db, err := repository.Open(ctx, repository.ConfigFromApp(cfg.Database), logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close(logger)
		return nil, nil, err
	}
	return repository.NewReportRepository(db.Driver, logger), func() { db.Close(logger) }, nil
}

// writeJSON writes v indented to path, or to w when path is empty.
func writeJSON(w io.Writer, path string, v any) error {
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
