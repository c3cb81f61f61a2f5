package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/insurance-validator/internal/repository"
)

var dbTimeout time.Duration

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Ping the configured store, apply migrations and count reports",
	Args:  cobra.NoArgs,
	RunE:  runDBHealth,
}

func init() {
	dbHealthCmd.Flags().DurationVar(&dbTimeout, "timeout", time.Second, "ping timeout")
	dbCmd.AddCommand(dbHealthCmd)
	rootCmd.AddCommand(dbCmd)
}

func runDBHealth(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(false, true)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repository.Open(ctx, repository.ConfigFromApp(cfg.Database), logger)
	if err != nil {
		return err
	}
	defer db.Close(logger)

	if err := db.HealthCheck(ctx, dbTimeout, logger); err != nil {
		return fmt.Errorf("db health: FAIL (%w)", err)
	}
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	page, err := repository.NewReportRepository(db.Driver, logger).List(ctx, 1, 1)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "db health: OK (driver=%s, reports=%d)\n", cfg.Database.Driver, page.Total)
	return nil
}
