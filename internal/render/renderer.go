package render

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"log/slog"
	"time"

	"github.com/gen2brain/go-fitz"

	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

// MinPageBytes is the encoded size below which a page is treated as blank.
const MinPageBytes = 30000

// Common scales (multiples of 72 DPI).
const (
	ScaleOCR    = 1.5
	ScaleVision = 2.0
)

// Document is the subset of a rasterizer document the renderer needs.
// *fitz.Document satisfies it.
type Document interface {
	NumPage() int
	ImageDPI(pageNumber int, dpi float64) (*image.RGBA, error)
	Close() error
}

// Opener opens a PDF held in memory.
type Opener func(pdf []byte) (Document, error)

// FitzOpener opens documents with MuPDF through go-fitz.
func FitzOpener(pdf []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type Config struct {
	MinPageBytes int // default MinPageBytes
	MaxPages     int // 0 = no limit
}

// Renderer rasterizes PDF pages sequentially.
type Renderer struct {
	cfg    Config
	open   Opener
	logger *slog.Logger
}

func NewRenderer(cfg Config, open Opener, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if open == nil {
		open = FitzOpener
	}
	if cfg.MinPageBytes <= 0 {
		cfg.MinPageBytes = MinPageBytes
	}
	return &Renderer{cfg: cfg, open: open, logger: logger}
}

// Render rasterizes every page at 72*scale DPI and returns the pages whose
// PNG encoding reaches the byte floor. It fails with a RENDER_ERROR when the
// document cannot be opened or no page survives.
func (r *Renderer) Render(ctx context.Context, pdf []byte, scale float64) ([]entity.RenderedPage, error) {
	log := common.LoggerWith(ctx, r.logger)
	start := time.Now()
	if scale <= 0 {
		scale = 1
	}

	doc, err := r.open(pdf)
	if err != nil {
		log.Error("render.open_failed", "error", err)
		return nil, common.NewRenderError("open pdf", err)
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			log.Warn("render.close_failed", "error", cerr)
		}
	}()

	n := doc.NumPage()
	if r.cfg.MaxPages > 0 && n > r.cfg.MaxPages {
		log.Warn("render.page_limit", "pages", n, "max_pages", r.cfg.MaxPages)
		n = r.cfg.MaxPages
	}

	dpi := 72 * scale
	pages := make([]entity.RenderedPage, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			log.Warn("render.page_failed", "page", i+1, "error", err)
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			log.Warn("render.encode_failed", "page", i+1, "error", err)
			continue
		}
		if buf.Len() < r.cfg.MinPageBytes {
			log.Debug("render.page_dropped", "page", i+1, "bytes", buf.Len(), "min_bytes", r.cfg.MinPageBytes)
			continue
		}
		b := img.Bounds()
		pages = append(pages, entity.RenderedPage{
			PageNumber: i + 1,
			ImageBytes: buf.Bytes(),
			MIME:       "image/png",
			WidthPx:    b.Dx(),
			HeightPx:   b.Dy(),
		})
	}

	log.Info("render.ok",
		"scale", scale,
		"pages_total", doc.NumPage(),
		"pages_kept", len(pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if len(pages) == 0 {
		return nil, common.NewRenderError("no valid pages were rendered from pdf", nil)
	}
	return pages, nil
}
