package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

// DefaultMaxEntryBytes bounds the decompressed size of a single entry.
const DefaultMaxEntryBytes int64 = 256 << 20

type Config struct {
	MaxEntryBytes int64
}

// Unpacker lists the PDF documents of a ZIP archive.
type Unpacker struct {
	cfg    Config
	logger *slog.Logger
}

func NewUnpacker(cfg Config, logger *slog.Logger) *Unpacker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxEntryBytes <= 0 {
		cfg.MaxEntryBytes = DefaultMaxEntryBytes
	}
	return &Unpacker{cfg: cfg, logger: logger}
}

// Unpack returns the archive's PDF entries in archive order, named by their
// base name. A repeated base name gets a " (n)" suffix so every document in
// the batch has a distinct name. Directories, non-PDF entries and macOS resource forks are
// skipped. An unreadable archive or entry is an ArchiveError; an archive
// without PDFs yields an empty slice.
func (u *Unpacker) Unpack(ctx context.Context, data []byte) ([]entity.Document, error) {
	log := common.LoggerWith(ctx, u.logger)
	start := time.Now()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Warn("archive.open.failed", "bytes", len(data), "error", err)
		return nil, common.NewArchiveError("invalid zip archive", err)
	}

	docs := make([]entity.Document, 0, len(zr.File))
	skipped := 0
	names := make(map[string]struct{}, len(zr.File))
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() || !wanted(f.Name) {
			skipped++
			continue
		}
		b, err := u.read(f)
		if err != nil {
			log.Warn("archive.entry.failed", "entry", f.Name, "error", err)
			return nil, common.NewArchiveError("read entry "+f.Name, err)
		}
		name := constants.UniqueName(names, baseName(f.Name))
		docs = append(docs, entity.Document{FileName: name, RawBytes: b})
		log.Debug("archive.entry", "entry", f.Name, "name", name, "bytes", len(b))
	}

	log.Info("archive.unpacked",
		"entries", len(zr.File),
		"documents", len(docs),
		"skipped", skipped,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return docs, nil
}

func (u *Unpacker) read(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, u.cfg.MaxEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > u.cfg.MaxEntryBytes {
		return nil, fmt.Errorf("entry exceeds %d bytes", u.cfg.MaxEntryBytes)
	}
	return b, nil
}

func baseName(name string) string {
	return path.Base(strings.ReplaceAll(name, "\\", "/"))
}

func wanted(name string) bool {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "__MACOSX/") {
		return false
	}
	return constants.IsPDFName(name)
}
