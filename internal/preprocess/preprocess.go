package preprocess

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

// Mode selects the enhancement profile.
type Mode string

const (
	ModeOCR    Mode = "ocr"
	ModeVision Mode = "vision"
)

type Config struct {
	VisionJPEGThreshold int     // inputs above this many bytes are re-encoded as JPEG in vision mode; default 300000
	JPEGQuality         int     // default 95
	DenoiseSigma        float64 // default 0.5
	SharpenSigma        float64 // default 1.5
	MaxEdge             int     // vision mode downscale limit in px; 0 = off
}

// Stage transforms an image. A failing stage never aborts the page.
type Stage func(img image.Image) (image.Image, error)

// Preprocessor enhances rendered pages for OCR or vision consumption.
type Preprocessor struct {
	cfg    Config
	logger *slog.Logger
}

func NewPreprocessor(cfg Config, logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.VisionJPEGThreshold <= 0 {
		cfg.VisionJPEGThreshold = 300000
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 95
	}
	if cfg.DenoiseSigma <= 0 {
		cfg.DenoiseSigma = 0.5
	}
	if cfg.SharpenSigma <= 0 {
		cfg.SharpenSigma = 1.5
	}
	return &Preprocessor{cfg: cfg, logger: logger}
}

// Process returns an enhanced copy of page. On any failure the original page
// is returned unchanged.
func (p *Preprocessor) Process(ctx context.Context, page entity.RenderedPage, mode Mode) entity.RenderedPage {
	log := common.LoggerWith(ctx, p.logger).With("page", page.PageNumber, "mode", string(mode))
	start := time.Now()

	out, err := p.process(page, mode, log)
	if err != nil {
		log.Warn("preprocess.fail_open", "error", err)
		return page
	}
	log.Debug("preprocess.ok",
		"bytes_in", len(page.ImageBytes),
		"bytes_out", len(out.ImageBytes),
		"mime", out.MIME,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}

func (p *Preprocessor) process(page entity.RenderedPage, mode Mode, log *slog.Logger) (out entity.RenderedPage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("preprocess panic: %v", r)
		}
	}()

	img, err := imaging.Decode(bytes.NewReader(page.ImageBytes))
	if err != nil {
		return page, fmt.Errorf("decode: %w", err)
	}

	var stages []namedStage
	format := imaging.PNG
	switch mode {
	case ModeOCR:
		stages = []namedStage{
			{"grayscale", grayscale},
			{"autocontrast", AutoContrast},
			{"denoise", blur(p.cfg.DenoiseSigma)},
			{"sharpen", sharpen(p.cfg.SharpenSigma)},
		}
	case ModeVision:
		stages = []namedStage{{"autocontrast", AutoContrast}}
		if p.cfg.MaxEdge > 0 {
			stages = append(stages, namedStage{"downscale", Downscale(p.cfg.MaxEdge)})
		}
		if len(page.ImageBytes) > p.cfg.VisionJPEGThreshold {
			format = imaging.JPEG
		}
	default:
		return page, fmt.Errorf("unknown mode %q", mode)
	}

	for _, s := range stages {
		img = failOpen(s.name, s.fn, log)(img)
	}

	var buf bytes.Buffer
	switch format {
	case imaging.JPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.cfg.JPEGQuality))
	default:
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	}
	if err != nil {
		return page, fmt.Errorf("encode: %w", err)
	}

	b := img.Bounds()
	out = entity.RenderedPage{
		PageNumber: page.PageNumber,
		ImageBytes: buf.Bytes(),
		MIME:       "image/png",
		WidthPx:    b.Dx(),
		HeightPx:   b.Dy(),
	}
	if format == imaging.JPEG {
		out.MIME = "image/jpeg"
	}
	return out, nil
}

type namedStage struct {
	name string
	fn   Stage
}

// failOpen wraps a stage so errors and panics yield the stage input.
func failOpen(name string, fn Stage, log *slog.Logger) func(image.Image) image.Image {
	return func(in image.Image) (out image.Image) {
		defer func() {
			if r := recover(); r != nil {
				log.Warn("preprocess.stage_panic", "stage", name, "panic", fmt.Sprint(r))
				out = in
			}
		}()
		res, err := fn(in)
		if err != nil || res == nil {
			log.Warn("preprocess.stage_failed", "stage", name, "error", err)
			return in
		}
		return res
	}
}

func grayscale(img image.Image) (image.Image, error) {
	return imaging.Grayscale(img), nil
}

func blur(sigma float64) Stage {
	return func(img image.Image) (image.Image, error) {
		return imaging.Blur(img, sigma), nil
	}
}

func sharpen(sigma float64) Stage {
	return func(img image.Image) (image.Image, error) {
		return imaging.Sharpen(img, sigma), nil
	}
}
