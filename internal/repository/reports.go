package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

const reportsTable = "analysis_reports"

var reportColumns = []string{"id", "status", "message", "records_json", "divergencies_json", "created_at_ms"}

// Page is one slice of the report listing, newest first.
type Page struct {
	Items []entity.Report `json:"items"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Total int             `json:"total"`
	Pages int             `json:"pages"`
}

type ReportRepository interface {
	Save(ctx context.Context, report *entity.Report) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Report, error)
	List(ctx context.Context, page, limit int) (Page, error)
}

type reportRepository struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewReportRepository(drv *entsql.Driver, logger *slog.Logger) ReportRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &reportRepository{drv: drv, logger: logger}
}

// NormalizePage clamps paging input: page < 1 becomes 1, limit < 1 becomes
// 10 and limit > 100 becomes 100.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit < 1:
		limit = 10
	case limit > 100:
		limit = 100
	}
	return page, limit
}

// Save assigns an id (when unset) and a timestamp (when zero), then
// inserts the report.
func (r *reportRepository) Save(ctx context.Context, report *entity.Report) (uuid.UUID, error) {
	log := common.LoggerWith(ctx, r.logger)
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now().UTC()
	}
	records, err := json.Marshal(nonNilRecords(report.Records))
	if err != nil {
		return uuid.Nil, common.NewAppError(common.CodeDatabase, "encode records", err)
	}
	divs, err := json.Marshal(nonNilDivergencies(report.Divergencies))
	if err != nil {
		return uuid.Nil, common.NewAppError(common.CodeDatabase, "encode divergencies", err)
	}

	q, args := entsql.Dialect(r.drv.Dialect()).
		Insert(reportsTable).
		Columns(reportColumns...).
		Values(report.ID.String(), string(report.Status), report.Message, string(records), string(divs), report.Timestamp.UnixMilli()).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		log.Error("report save failed", "report_id", report.ID, "error", err)
		return uuid.Nil, common.NewAppError(common.CodeDatabase, "insert report", err)
	}
	log.Info("report saved", "report_id", report.ID, "status", report.Status, "records", len(report.Records))
	return report.ID, nil
}

func (r *reportRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Report, error) {
	q, args := entsql.Dialect(r.drv.Dialect()).
		Select(reportColumns...).
		From(entsql.Table(reportsTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	reports, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, common.NewAppError(common.CodeNotFound, "report "+id.String(), nil)
	}
	return &reports[0], nil
}

func (r *reportRepository) List(ctx context.Context, page, limit int) (Page, error) {
	page, limit = NormalizePage(page, limit)
	b := entsql.Dialect(r.drv.Dialect())

	cq, cargs := b.Select(entsql.Count("*")).From(entsql.Table(reportsTable)).Query()
	total, err := r.count(ctx, cq, cargs)
	if err != nil {
		return Page{}, err
	}

	q, args := b.Select(reportColumns...).
		From(entsql.Table(reportsTable)).
		OrderBy(entsql.Desc("created_at_ms"), entsql.Desc("id")).
		Limit(limit).
		Offset((page - 1) * limit).
		Query()
	items, err := r.query(ctx, q, args)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: (total + limit - 1) / limit,
	}, nil
}

func (r *reportRepository) count(ctx context.Context, q string, args []any) (int, error) {
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, q, args, rows); err != nil {
		return 0, common.NewAppError(common.CodeDatabase, "count reports", err)
	}
	defer rows.Close()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, common.NewAppError(common.CodeDatabase, "scan count", err)
		}
	}
	return n, rows.Err()
}

func (r *reportRepository) query(ctx context.Context, q string, args []any) ([]entity.Report, error) {
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, q, args, rows); err != nil {
		r.logger.Error("report query failed", "error", err)
		return nil, common.NewAppError(common.CodeDatabase, "query reports", err)
	}
	defer rows.Close()

	out := []entity.Report{}
	for rows.Next() {
		var (
			id, status, message, records, divs string
			createdMs                          int64
		)
		if err := rows.Scan(&id, &status, &message, &records, &divs, &createdMs); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "scan report", err)
		}
		rep, err := decodeReport(id, status, message, records, divs, createdMs)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "iterate reports", err)
	}
	return out, nil
}

func decodeReport(id, status, message, records, divs string, createdMs int64) (entity.Report, error) {
	rid, err := uuid.Parse(id)
	if err != nil {
		return entity.Report{}, common.NewAppError(common.CodeDatabase, "stored id "+id, err)
	}
	rep := entity.Report{
		ID:        rid,
		Status:    constants.ReportStatus(status),
		Message:   message,
		Timestamp: time.UnixMilli(createdMs).UTC(),
	}
	if err := errors.Join(
		json.Unmarshal([]byte(records), &rep.Records),
		json.Unmarshal([]byte(divs), &rep.Divergencies),
	); err != nil {
		return entity.Report{}, common.NewAppError(common.CodeDatabase, "decode report "+id, err)
	}
	rep.Records = nonNilRecords(rep.Records)
	rep.Divergencies = nonNilDivergencies(rep.Divergencies)
	return rep, nil
}

func nonNilRecords(r []entity.Record) []entity.Record {
	if r == nil {
		return []entity.Record{}
	}
	return r
}

func nonNilDivergencies(d []entity.Divergency) []entity.Divergency {
	if d == nil {
		return []entity.Divergency{}
	}
	return d
}
