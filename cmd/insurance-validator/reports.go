package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	listPage  int
	listLimit int
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Browse stored analysis reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reports, newest first",
	Args:  cobra.NoArgs,
	RunE:  runReportsList,
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one stored report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportsShow,
}

func init() {
	reportsListCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	reportsListCmd.Flags().IntVar(&listLimit, "limit", 10, "reports per page (max 100)")
	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd)
	rootCmd.AddCommand(reportsCmd)
}

func runReportsList(cmd *cobra.Command, _ []string) error {
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

	page, err := reports.List(ctx, listPage, listLimit)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), "", page)
}

func runReportsShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid report id: %w", err)
	}
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

	report, err := reports.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), "", report)
}
