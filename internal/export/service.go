package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

const (
	SheetDocuments    = "Documents"
	SheetDivergencies = "Divergencies"
)

// Service produces XLSX bytes for stored reports.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ReportsXLSX writes one row per document and one row per divergency,
// each tagged with its report id.
func (s *Service) ReportsXLSX(ctx context.Context, reports []entity.Report) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetDocuments); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetDivergencies); err != nil {
		return nil, err
	}

	docHeaders := []string{"Report ID", "Timestamp", "Report Status", "File", "Status", "Method", "Confidence", "Text Length"}
	for _, name := range constants.AllFields {
		docHeaders = append(docHeaders, string(name))
	}
	writeRow(f, SheetDocuments, 1, toAny(docHeaders))
	writeRow(f, SheetDivergencies, 1, toAny([]string{"Report ID", "Field", "Type", "Files", "Values", "Description"}))

	docRow, divRow := 2, 2
	for _, rep := range reports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := rep.ID.String()
		ts := rep.Timestamp.UTC().Format(time.RFC3339)
		for _, rec := range rep.Records {
			row := []any{id, ts, string(rep.Status), rec.FileName, string(rec.Status),
				string(rec.Metadata.Method), rec.Metadata.Confidence, rec.Metadata.TextLength}
			for _, name := range constants.AllFields {
				v := ""
				if p := rec.Value(name); p != nil {
					v = *p
				}
				row = append(row, v)
			}
			writeRow(f, SheetDocuments, docRow, row)
			docRow++
		}
		for _, d := range rep.Divergencies {
			writeRow(f, SheetDivergencies, divRow, []any{
				id, string(d.Field), string(d.Kind), strings.Join(d.Files, ", "),
				formatValues(d.Values), truncate(d.Description, 240),
			})
			divRow++
		}
	}

	_ = f.SetColWidth(SheetDocuments, "A", "A", 38)
	_ = f.SetColWidth(SheetDocuments, "B", "B", 22)
	_ = f.SetColWidth(SheetDocuments, "D", "D", 28)
	_ = f.SetColWidth(SheetDivergencies, "A", "A", 38)
	_ = f.SetColWidth(SheetDivergencies, "D", "E", 40)
	_ = f.SetColWidth(SheetDivergencies, "F", "F", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"reports", len(reports),
		"document_rows", docRow-2,
		"divergency_rows", divRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// formatValues renders file=value pairs sorted by file.
func formatValues(values map[string]string) string {
	files := make([]string, 0, len(values))
	for f := range values {
		files = append(files, f)
	}
	sort.Strings(files)
	parts := make([]string, len(files))
	for i, f := range files {
		parts[i] = f + "=" + values[f]
	}
	return strings.Join(parts, "; ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
