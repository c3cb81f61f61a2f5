package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/insurance-validator/internal/entity"
	"github.com/joseph-ayodele/insurance-validator/internal/export"
)

var (
	exportOut   string
	exportLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored reports to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "reports.xlsx", "output workbook path")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 100, "maximum number of reports, newest first")
	rootCmd.AddCommand(exportCmd)
}

func runExport(_ *cobra.Command, _ []string) error {
	cfg, logger, err := setup(false, true)
	if err != nil {
		return err
	}
	ctx := context.Background()
	reports, closeFn, err := openReports(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	var all []entity.Report
	for page := 1; len(all) < exportLimit; page++ {
		p, err := reports.List(ctx, page, 100)
		if err != nil {
			return err
		}
		all = append(all, p.Items...)
		if page >= p.Pages {
			break
		}
	}
	if len(all) > exportLimit {
		all = all[:exportLimit]
	}

	data, err := export.NewService(logger).ReportsXLSX(ctx, all)
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOut, err)
	}
	logger.Info("cli.export.done", "reports", len(all), "out", exportOut)
	return nil
}
