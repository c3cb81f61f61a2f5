package ingest

import (
	"encoding/json"
	"os"

	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

func writeReport(archivePath string, report entity.Report) error {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(archivePath+".report.json", b, 0o644)
}
