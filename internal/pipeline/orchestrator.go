package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
	"github.com/joseph-ayodele/insurance-validator/internal/ocr"
	"github.com/joseph-ayodele/insurance-validator/internal/preprocess"
	"github.com/joseph-ayodele/insurance-validator/internal/render"
	"github.com/joseph-ayodele/insurance-validator/internal/textlayer"
)

type TextLayer interface {
	Extract(ctx context.Context, pdf []byte) (string, error)
}

type OCR interface {
	Run(ctx context.Context, pdf []byte) (ocr.Result, error)
}

type Renderer interface {
	Render(ctx context.Context, pdf []byte, scale float64) ([]entity.RenderedPage, error)
}

type Preprocessor interface {
	Process(ctx context.Context, page entity.RenderedPage, mode preprocess.Mode) entity.RenderedPage
}

type StructuredExtractor interface {
	ExtractFromText(ctx context.Context, text, fileName string) (personal, vehicle entity.Fields, err error)
}

type VisionExtractor interface {
	ExtractFromImage(ctx context.Context, page entity.RenderedPage, fileName string) (entity.PageExtraction, error)
}

type Merger interface {
	Merge(ctx context.Context, pages []entity.PageExtraction) (personal, vehicle entity.Fields)
}

// Inspector reports PDF structure before extraction; optional.
type Inspector func(pdf []byte) (render.Info, error)

// Deps are the adapters the orchestrator drives.
type Deps struct {
	TextLayer    TextLayer
	OCR          OCR
	Renderer     Renderer
	Preprocessor Preprocessor
	Structured   StructuredExtractor
	Vision       VisionExtractor
	Merger       Merger
	Inspect      Inspector
}

type Config struct {
	Thresholds
	VisionScale float64 // default render.ScaleVision
}

// Orchestrator runs the extraction machine over one document at a time.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

func NewOrchestrator(cfg Config, deps Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Thresholds = cfg.Thresholds.withDefaults()
	if cfg.VisionScale <= 0 {
		cfg.VisionScale = render.ScaleVision
	}
	return &Orchestrator{cfg: cfg, deps: deps, logger: logger}
}

// run carries the machine's data between states.
type run struct {
	doc      entity.Document
	attempt  entity.ExtractionAttempt
	record   entity.Record
	ocrTime  time.Duration
	rendTime time.Duration
	trace    []State
}

// Process extracts one document. A document-level failure (render error,
// structured extraction failure, cancellation) returns a failed record
// together with the error; page-level failures never surface here.
func (o *Orchestrator) Process(ctx context.Context, doc entity.Document) (entity.Record, error) {
	ctx = common.WithFileName(ctx, doc.FileName)
	log := common.LoggerWith(ctx, o.logger)
	start := time.Now()

	o.inspect(doc, log)

	r := &run{doc: doc}
	state := StateTextAttempt
	var err error
	for state != StateDone && err == nil {
		r.trace = append(r.trace, state)
		log.Debug("pipeline.state", "state", state)
		state, err = o.step(ctx, state, r, log)
	}
	if err != nil {
		log.Error("pipeline.document.failed",
			"state", r.trace[len(r.trace)-1],
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.FailedRecord(doc.FileName, err), err
	}

	r.record.Metadata.OCRTimeMs = r.ocrTime.Milliseconds()
	r.record.Metadata.RenderTimeMs = r.rendTime.Milliseconds()
	log.Info("pipeline.document.ok",
		"path", r.trace[len(r.trace)-1],
		"method", r.record.Metadata.Method,
		"confidence", r.record.Metadata.Confidence,
		"text_len", r.record.Metadata.TextLength,
		"has_data", r.record.HasData(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return r.record, nil
}

func (o *Orchestrator) step(ctx context.Context, s State, r *run, log *slog.Logger) (State, error) {
	switch s {
	case StateTextAttempt:
		attempt, err := o.textAttempt(ctx, r, log)
		if err != nil {
			return s, err
		}
		r.attempt = attempt
		return StateDecide, nil
	case StateDecide:
		next := Decide(r.attempt, o.cfg.Thresholds)
		log.Info("pipeline.decide",
			"method", r.attempt.Method,
			"chars", utf8.RuneCountInString(r.attempt.Text),
			"confidence", r.attempt.Confidence,
			"low_confidence", o.cfg.LowConfidence(r.attempt),
			"next", next,
		)
		return next, nil
	case StateTextPath:
		return StateDone, o.textPath(ctx, r)
	case StateVisionPath:
		return StateDone, o.visionPath(ctx, r, log)
	default:
		return s, fmt.Errorf("pipeline: unknown state %q", s)
	}
}

func (o *Orchestrator) inspect(doc entity.Document, log *slog.Logger) {
	if o.deps.Inspect == nil {
		return
	}
	info, err := o.deps.Inspect(doc.RawBytes)
	if err != nil {
		log.Warn("pipeline.inspect.failed", "error", err)
		return
	}
	log.Info("pipeline.inspect", "pages", info.Pages, "valid", info.Valid, "issue", info.Issue, "bytes", len(doc.RawBytes))
}

// textAttempt trusts the embedded text layer when it is long enough and
// otherwise falls back to OCR. Only cancellation is an error here.
func (o *Orchestrator) textAttempt(ctx context.Context, r *run, log *slog.Logger) (entity.ExtractionAttempt, error) {
	start := time.Now()
	defer func() { r.ocrTime = time.Since(start) }()

	text, err := o.deps.TextLayer.Extract(ctx, r.doc.RawBytes)
	switch {
	case err != nil && ctx.Err() != nil:
		return entity.ExtractionAttempt{}, ctx.Err()
	case err != nil:
		log.Warn("pipeline.textlayer.failed", "error", err)
	case utf8.RuneCountInString(text) > o.cfg.TextLayerMinChars:
		return entity.ExtractionAttempt{Method: constants.MethodText, Text: text, Confidence: 100}, nil
	default:
		log.Info("pipeline.textlayer.short", "chars", utf8.RuneCountInString(text))
	}

	res, err := o.deps.OCR.Run(ctx, r.doc.RawBytes)
	if err != nil {
		if ctx.Err() != nil {
			return entity.ExtractionAttempt{}, ctx.Err()
		}
		log.Warn("pipeline.ocr.failed", "error", err)
		return entity.ExtractionAttempt{Method: constants.MethodNone}, nil
	}
	text = textlayer.Normalize(res.Text)
	if text == "" {
		return entity.ExtractionAttempt{Method: constants.MethodNone}, nil
	}
	return entity.ExtractionAttempt{Method: constants.MethodOCR, Text: text, Confidence: res.Confidence}, nil
}

func (o *Orchestrator) textPath(ctx context.Context, r *run) error {
	personal, vehicle, err := o.deps.Structured.ExtractFromText(ctx, r.attempt.Text, r.doc.FileName)
	if err != nil {
		return err
	}
	rec := entity.NewRecord(r.doc.FileName)
	rec.PersonalFields = personal
	rec.VehicleFields = vehicle
	rec.Metadata = entity.ExtractionMetadata{
		Method:     r.attempt.Method,
		TextLength: utf8.RuneCountInString(r.attempt.Text),
		Confidence: r.attempt.Confidence,
	}
	r.record = rec
	return nil
}

// visionPath renders at vision scale and queries every page. Pages whose
// call fails contribute nothing; only a render failure or cancellation
// fails the document.
func (o *Orchestrator) visionPath(ctx context.Context, r *run, log *slog.Logger) error {
	start := time.Now()
	pages, err := o.deps.Renderer.Render(ctx, r.doc.RawBytes, o.cfg.VisionScale)
	r.rendTime = time.Since(start)
	if err != nil {
		return err
	}

	extractions := make([]entity.PageExtraction, 0, len(pages))
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		img := o.deps.Preprocessor.Process(ctx, p, preprocess.ModeVision)
		ext, err := o.deps.Vision.ExtractFromImage(ctx, img, r.doc.FileName)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("pipeline.vision.page_skipped", "page", p.PageNumber, "error", err)
			continue
		}
		extractions = append(extractions, ext)
	}

	personal, vehicle := o.deps.Merger.Merge(ctx, extractions)
	rec := entity.NewRecord(r.doc.FileName)
	rec.PersonalFields = personal
	rec.VehicleFields = vehicle
	rec.Metadata = entity.ExtractionMetadata{
		Method:     constants.MethodVision,
		TextLength: utf8.RuneCountInString(r.attempt.Text),
		Confidence: 100,
	}
	log.Info("pipeline.vision.done", "pages", len(pages), "answered", len(extractions))
	r.record = rec
	return nil
}
