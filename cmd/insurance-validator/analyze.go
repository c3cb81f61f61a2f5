package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/app"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
	"github.com/joseph-ayodele/insurance-validator/internal/export"
)

var (
	analyzeSave bool
	analyzeOut  string
	analyzeXLSX string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <archive.zip>",
	Short: "Analyze a ZIP archive of insurance PDFs",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "persist the report to the configured store")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "write the report JSON to this file instead of stdout")
	analyzeCmd.Flags().StringVar(&analyzeXLSX, "xlsx", "", "also write the report as an XLSX workbook")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	persist := analyzeSave || inMem
	cfg, logger, err := setup(true, persist)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{Persist: persist}, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Analysis.AnalyzeAndSave(ctx, data)
	if err != nil {
		return err
	}
	if err := writeJSON(cmd.OutOrStdout(), analyzeOut, report); err != nil {
		return err
	}
	if analyzeXLSX != "" {
		wb, err := export.NewService(logger).ReportsXLSX(ctx, []entity.Report{report})
		if err != nil {
			return err
		}
		if err := os.WriteFile(analyzeXLSX, wb, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", analyzeXLSX, err)
		}
	}
	if persist {
		logger.Info("cli.analyze.saved", "id", report.ID)
	}
	if report.Status == constants.ReportStatusError {
		return fmt.Errorf("analysis failed: %s", report.Message)
	}
	return nil
}
