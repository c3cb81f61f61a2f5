// Package app assembles the analysis stack from configuration. Both
// binaries build through it so the CLI and the daemon run identical
// pipelines.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/insurance-validator/internal/analysis"
	"github.com/joseph-ayodele/insurance-validator/internal/archive"
	"github.com/joseph-ayodele/insurance-validator/internal/cache"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/divergency"
	"github.com/joseph-ayodele/insurance-validator/internal/evidence"
	"github.com/joseph-ayodele/insurance-validator/internal/llm"
	"github.com/joseph-ayodele/insurance-validator/internal/llm/openai"
	"github.com/joseph-ayodele/insurance-validator/internal/ocr"
	"github.com/joseph-ayodele/insurance-validator/internal/pipeline"
	"github.com/joseph-ayodele/insurance-validator/internal/preprocess"
	"github.com/joseph-ayodele/insurance-validator/internal/render"
	"github.com/joseph-ayodele/insurance-validator/internal/repository"
	"github.com/joseph-ayodele/insurance-validator/internal/textlayer"
)

type Options struct {
	// Persist opens the configured database, migrates it and stores every report.
	Persist bool
	// Completer replaces the OpenAI client; used by tests.
	Completer llm.Completer
	// Engine replaces the configured OCR engine; used by tests.
	Engine ocr.Engine
}

// App is the assembled stack. Reports is nil unless Options.Persist was set.
type App struct {
	Analysis *analysis.Service
	Pipeline *pipeline.Orchestrator
	Reports  repository.ReportRepository

	db     *repository.DB
	store  cache.Store
	logger *slog.Logger
}

func Build(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	a := &App{logger: logger}

	completer := opts.Completer
	if completer == nil {
		completer = openai.NewClient(openai.ConfigFromApp(cfg.LLM), logger)
	}
	engine := opts.Engine
	if engine == nil {
		engine = newEngine(cfg.OCR, logger)
	}

	renderer := render.NewRenderer(render.Config{MaxPages: cfg.Render.MaxPages}, nil, logger)
	prep := preprocess.NewPreprocessor(preprocess.Config{}, logger)
	orch := pipeline.NewOrchestrator(pipeline.Config{}, pipeline.Deps{
		TextLayer:    textlayer.NewExtractor(nil, logger),
		OCR:          ocr.NewCascade(ocr.Config{Language: cfg.OCR.Language}, renderer, prep, engine, logger),
		Renderer:     renderer,
		Preprocessor: prep,
		Structured:   llm.NewStructuredExtractor(completer, llm.StructuredConfig{}, logger),
		Vision:       llm.NewVisionExtractor(completer, llm.VisionConfig{}, logger),
		Merger:       evidence.NewMerger(nil, logger),
		Inspect:      render.Inspect,
	}, logger)

	var comparer divergency.Comparer
	if cfg.Divergency.Mode == "llm" {
		comparer = llm.NewDivergencyComparer(completer, logger)
	}
	detector := divergency.NewDetector(comparer, logger)

	store, err := newStore(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	svcOpts := []analysis.Option{
		analysis.WithCache(cache.NewRecordCache(store, cfg.Cache.TTL, logger)),
	}

	if opts.Persist {
		db, err := repository.Open(ctx, repository.ConfigFromApp(cfg.Database), logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.db = db
		if err := db.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.Reports = repository.NewReportRepository(db.Driver, logger)
		svcOpts = append(svcOpts, analysis.WithStore(a.Reports))
	}

	a.Pipeline = orch
	a.Analysis = analysis.NewService(archive.NewUnpacker(archive.Config{}, logger), orch, detector, logger, svcOpts...)
	logger.Info("app.built",
		"ocr_engine", cfg.OCR.Engine,
		"divergency_mode", cfg.Divergency.Mode,
		"persist", opts.Persist,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return a, nil
}

func newEngine(cfg common.OCRConfig, logger *slog.Logger) ocr.Engine {
	if cfg.Engine == "cli" {
		return ocr.NewCLIEngine(cfg.Tesseract, cfg.TessdataDir, ocr.NewExecRunner(logger))
	}
	return ocr.NewGosseractEngine(cfg.TessdataDir)
}

// newStore prefers Redis when REDIS_URL is set; otherwise records are
// cached in process memory.
func newStore(ctx context.Context, cfg common.CacheConfig, logger *slog.Logger) (cache.Store, error) {
	if cfg.RedisURL == "" {
		return cache.NewMemoryStore(0), nil
	}
	s, err := cache.NewRedisStore(ctx, cfg.RedisURL, "")
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	logger.Info("app.cache.redis")
	return s, nil
}

// DB exposes the opened database for health checks; nil without persistence.
func (a *App) DB() *repository.DB { return a.db }

func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("app.cache.close_failed", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close(a.logger)
	}
}
