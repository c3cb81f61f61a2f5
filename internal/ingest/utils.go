package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/insurance-validator/constants"
)

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// isCandidate reports whether path is a visible archive.
func isCandidate(path string) bool {
	return !IsHidden(path) && constants.IsArchiveName(path)
}
