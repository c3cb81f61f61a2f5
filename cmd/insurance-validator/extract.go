package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/app"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

var extractTimeout time.Duration

// extractCmd runs the single-document pipeline, useful when tuning OCR
// and vision thresholds against one problematic file.
var extractCmd = &cobra.Command{
	Use:   "extract <document.pdf>",
	Short: "Extract fields from a single PDF without reconciliation",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 5*time.Minute, "overall extraction timeout")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !constants.IsPDFName(path) {
		return fmt.Errorf("%s is not a PDF", path)
	}
	cfg, logger, err := setup(true, false)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), extractTimeout)
	defer cancel()

	a, err := app.Build(ctx, cfg, app.Options{}, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	rec, err := a.Pipeline.Process(ctx, entity.Document{FileName: filepath.Base(path), RawBytes: data})
	logger.Info("cli.extract.done",
		"method", rec.Metadata.Method,
		"confidence", rec.Metadata.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if werr := writeJSON(cmd.OutOrStdout(), "", rec); werr != nil {
		return werr
	}
	return err
}
