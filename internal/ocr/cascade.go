package ocr

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
	"github.com/joseph-ayodele/insurance-validator/internal/preprocess"
	"github.com/joseph-ayodele/insurance-validator/internal/render"
)

// PageRenderer rasterizes a PDF at a DPI scale.
type PageRenderer interface {
	Render(ctx context.Context, pdf []byte, scale float64) ([]entity.RenderedPage, error)
}

// PagePreprocessor enhances a rendered page; it never fails.
type PagePreprocessor interface {
	Process(ctx context.Context, page entity.RenderedPage, mode preprocess.Mode) entity.RenderedPage
}

type Config struct {
	Language               string  // default "por"
	Scale                  float64 // default render.ScaleOCR
	MinPageConfidence      float64 // page accepted only above this; default 50
	MinTextLength          int     // quality gate length; default 20
	MinAggregateConfidence float64 // quality gate confidence; default 60
}

// Result is the aggregate of one OCR pass over a document.
type Result struct {
	Text          string
	Confidence    float64
	PagesAccepted int
	PagesSkipped  int
	Discarded     bool // quality gate dropped the text
	Duration      time.Duration
}

// Cascade renders, preprocesses and recognizes every page of a PDF.
type Cascade struct {
	cfg      Config
	renderer PageRenderer
	prep     PagePreprocessor
	engine   Engine
	logger   *slog.Logger
}

func NewCascade(cfg Config, renderer PageRenderer, prep PagePreprocessor, engine Engine, logger *slog.Logger) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = "por"
	}
	if cfg.Scale <= 0 {
		cfg.Scale = render.ScaleOCR
	}
	if cfg.MinPageConfidence <= 0 {
		cfg.MinPageConfidence = 50
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 20
	}
	if cfg.MinAggregateConfidence <= 0 {
		cfg.MinAggregateConfidence = 60
	}
	return &Cascade{cfg: cfg, renderer: renderer, prep: prep, engine: engine, logger: logger}
}

// Run recognizes pdf page by page. Pages with empty text or confidence at or
// below MinPageConfidence are skipped; engine failures skip the page as a
// RECOGNITION_ERROR. A render failure is returned as is.
func (c *Cascade) Run(ctx context.Context, pdf []byte) (Result, error) {
	log := common.LoggerWith(ctx, c.logger)
	start := time.Now()

	pages, err := c.renderer.Render(ctx, pdf, c.cfg.Scale)
	if err != nil {
		return Result{Duration: time.Since(start)}, err
	}

	var (
		texts []string
		sum   float64
		res   Result
	)
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return Result{Duration: time.Since(start)}, err
		}
		img := c.prep.Process(ctx, p, preprocess.ModeOCR)
		rec, err := c.engine.Recognize(ctx, img.ImageBytes, c.cfg.Language)
		if err != nil {
			if ctx.Err() != nil {
				return Result{Duration: time.Since(start)}, ctx.Err()
			}
			rerr := common.NewRecognitionError("page recognition failed", err)
			log.Warn("ocr.page.failed", "page", p.PageNumber, "error", rerr)
			res.PagesSkipped++
			continue
		}
		text := Clean(rec.Text)
		if text == "" || rec.Confidence <= c.cfg.MinPageConfidence {
			log.Info("ocr.page.skipped", "page", p.PageNumber, "chars", utf8.RuneCountInString(text), "confidence", rec.Confidence)
			res.PagesSkipped++
			continue
		}
		log.Info("ocr.page.accepted", "page", p.PageNumber, "chars", utf8.RuneCountInString(text), "confidence", rec.Confidence)
		texts = append(texts, text)
		sum += rec.Confidence
		res.PagesAccepted++
	}

	if res.PagesAccepted > 0 {
		res.Confidence = sum / float64(res.PagesAccepted)
	}
	res.Text = strings.Join(texts, "\n")
	if utf8.RuneCountInString(res.Text) < c.cfg.MinTextLength && res.Confidence < c.cfg.MinAggregateConfidence {
		if res.Text != "" {
			log.Info("ocr.discarded", "chars", utf8.RuneCountInString(res.Text), "confidence", res.Confidence)
		}
		res.Text = ""
		res.Discarded = true
	}
	res.Duration = time.Since(start)
	log.Info("ocr.done",
		"chars", utf8.RuneCountInString(res.Text),
		"confidence", res.Confidence,
		"pages_accepted", res.PagesAccepted,
		"pages_skipped", res.PagesSkipped,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
