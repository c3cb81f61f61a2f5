package textlayer

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/joseph-ayodele/insurance-validator/internal/common"
)

// Document is the subset of a parsed PDF needed to read embedded text.
type Document interface {
	NumPage() int
	Text(pageNumber int) (string, error)
	Close() error
}

// Opener opens a PDF held in memory.
type Opener func(pdf []byte) (Document, error)

func fitzOpener(pdf []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

var (
	reControl    = regexp.MustCompile(`[\x00\r]`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// Normalize removes NUL and CR, turns newlines into spaces, collapses runs of
// whitespace and trims.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reControl.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\n", " ")
	s = reWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Extractor reads the embedded text layer of a PDF. It never rasterizes.
type Extractor struct {
	open   Opener
	logger *slog.Logger
}

func NewExtractor(open Opener, logger *slog.Logger) *Extractor {
	if open == nil {
		open = fitzOpener
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{open: open, logger: logger}
}

// Extract returns the normalized text of every page. A page that fails to
// yield text is skipped; an unreadable document is an error.
func (e *Extractor) Extract(ctx context.Context, pdf []byte) (string, error) {
	log := common.LoggerWith(ctx, e.logger)
	doc, err := e.open(pdf)
	if err != nil {
		log.Warn("textlayer.open_failed", "error", err)
		return "", err
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			log.Warn("textlayer.close_failed", "error", cerr)
		}
	}()

	var b strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		txt, err := doc.Text(i)
		if err != nil {
			log.Warn("textlayer.page_failed", "page", i+1, "error", err)
			continue
		}
		b.WriteString(txt)
		b.WriteString("\n")
	}
	out := Normalize(b.String())
	log.Debug("textlayer.ok", "pages", doc.NumPage(), "chars", len(out))
	return out, nil
}
