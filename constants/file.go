package constants

import (
	"fmt"
	"path/filepath"
	"strings"
)

// AllowedExtensions holds the document extensions accepted from archives.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// ArchiveExtensions holds the extensions picked up from the inbox directory.
var ArchiveExtensions = map[string]struct{}{
	"zip": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDFName reports whether name ends in .pdf (any case).
func IsPDFName(name string) bool {
	_, ok := AllowedExtensions[NormalizeExt(filepath.Ext(name))]
	return ok
}

// IsArchiveName reports whether name ends in .zip (any case).
func IsArchiveName(name string) bool {
	_, ok := ArchiveExtensions[NormalizeExt(filepath.Ext(name))]
	return ok
}

// UniqueName returns name, or "stem (n).ext" with the lowest n >= 2 not yet
// taken, and records the result in taken.
func UniqueName(taken map[string]struct{}, name string) string {
	candidate := name
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		if _, dup := taken[candidate]; !dup {
			break
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
	taken[candidate] = struct{}{}
	return candidate
}
