package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

type Unpacker interface {
	Unpack(ctx context.Context, data []byte) ([]entity.Document, error)
}

type Processor interface {
	Process(ctx context.Context, doc entity.Document) (entity.Record, error)
}

type Detector interface {
	Detect(ctx context.Context, records []entity.Record) []entity.Divergency
}

type Store interface {
	Save(ctx context.Context, report *entity.Report) (uuid.UUID, error)
}

type RecordCache interface {
	Lookup(ctx context.Context, pdf []byte, fileName string) (entity.Record, bool)
	Store(ctx context.Context, pdf []byte, rec entity.Record)
}

const (
	msgNoPDFs     = "Nenhum arquivo PDF encontrado no ZIP"
	msgZipError   = "Erro ao analisar ZIP: %s"
	msgAllFailed  = "Documentos analisados: %d. Falha ao processar todos os documentos."
	msgDivergency = "Documentos analisados: %d. Divergências encontradas: %d"
	msgOK         = "Documentos analisados: %d. ✓ Todos os documentos estão aptos para prosseguimento."
)

// Service runs one archive end to end: unpack, extract every document,
// detect divergencies and build the report. Store and Cache are optional.
type Service struct {
	unpacker  Unpacker
	processor Processor
	detector  Detector
	store     Store
	cache     RecordCache
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Service)

func WithStore(s Store) Option { return func(svc *Service) { svc.store = s } }

func WithCache(c RecordCache) Option { return func(svc *Service) { svc.cache = c } }

func WithClock(now func() time.Time) Option {
	return func(svc *Service) {
		if now != nil {
			svc.now = now
		}
	}
}

func NewService(u Unpacker, p Processor, d Detector, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{unpacker: u, processor: p, detector: d, now: time.Now, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Analyze never fails: every outcome, including a corrupt archive,
// is expressed in the returned report.
func (s *Service) Analyze(ctx context.Context, data []byte) entity.Report {
	batchID := uuid.New()
	if common.BatchIDFromContext(ctx) == "" {
		ctx = common.WithBatchID(ctx, batchID.String())
	}
	log := common.LoggerWith(ctx, s.logger)
	start := time.Now()
	log.Info("analysis.start", "bytes", len(data))

	docs, err := s.unpacker.Unpack(ctx, data)
	if err != nil {
		log.Error("analysis.unpack.failed", "error", err)
		return s.errorReport(fmt.Sprintf(msgZipError, err))
	}
	if len(docs) == 0 {
		log.Warn("analysis.no_documents")
		return s.errorReport(msgNoPDFs)
	}

	records := make([]entity.Record, 0, len(docs))
	failed := 0
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			log.Warn("analysis.cancelled", "processed", i, "error", err)
			return s.errorReport(fmt.Sprintf(msgZipError, err))
		}
		rec, err := s.document(ctx, doc)
		if err != nil {
			if ctx.Err() != nil {
				log.Warn("analysis.cancelled", "processed", i, "error", ctx.Err())
				return s.errorReport(fmt.Sprintf(msgZipError, ctx.Err()))
			}
			failed++
			log.Error("analysis.document.failed", "file", doc.FileName, "error", err)
		}
		records = append(records, rec)
	}

	report := entity.Report{
		Records:      records,
		Divergencies: []entity.Divergency{},
		Timestamp:    s.now().UTC(),
	}
	switch {
	case failed == len(docs):
		report.Status = constants.ReportStatusError
		report.Message = fmt.Sprintf(msgAllFailed, len(docs))
	default:
		report.Divergencies = s.detector.Detect(ctx, records)
		if len(report.Divergencies) > 0 {
			report.Status = constants.ReportStatusDivergencies
			report.Message = fmt.Sprintf(msgDivergency, len(docs), len(report.Divergencies))
		} else {
			report.Status = constants.ReportStatusOK
			report.Message = fmt.Sprintf(msgOK, len(docs))
		}
	}

	log.Info("analysis.done",
		"status", report.Status,
		"documents", len(docs),
		"failed", failed,
		"divergencies", len(report.Divergencies),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report
}

// AnalyzeAndSave analyzes the archive and, when a store is configured,
// persists the report and sets its id. Only a storage failure is an error.
func (s *Service) AnalyzeAndSave(ctx context.Context, data []byte) (entity.Report, error) {
	report := s.Analyze(ctx, data)
	if s.store == nil {
		return report, nil
	}
	if _, err := s.store.Save(context.WithoutCancel(ctx), &report); err != nil {
		return report, fmt.Errorf("save report: %w", err)
	}
	return report, nil
}

func (s *Service) document(ctx context.Context, doc entity.Document) (entity.Record, error) {
	if s.cache != nil {
		if rec, ok := s.cache.Lookup(ctx, doc.RawBytes, doc.FileName); ok {
			return rec, nil
		}
	}
	rec, err := s.processor.Process(ctx, doc)
	if err != nil {
		if !rec.Failed() {
			rec = entity.FailedRecord(doc.FileName, err)
		}
		return rec, err
	}
	if s.cache != nil {
		s.cache.Store(ctx, doc.RawBytes, rec)
	}
	return rec, nil
}

func (s *Service) errorReport(message string) entity.Report {
	return entity.ErrorReport(message, s.now().UTC())
}
