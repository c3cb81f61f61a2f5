package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/async"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

type Analyzer interface {
	AnalyzeAndSave(ctx context.Context, data []byte) (entity.Report, error)
}

// Inbox turns archives dropped into a directory into analysis jobs.
// Analyzed archives move to processed/ (report written alongside as
// <name>.report.json) or to failed/ when the report is an error.
type Inbox struct {
	dir      string
	analyzer Analyzer
	debounce time.Duration
	logger   *slog.Logger
}

func NewInbox(dir string, analyzer Analyzer, debounce time.Duration, logger *slog.Logger) (*Inbox, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("inbox directory is required")
	}
	for _, sub := range []string{dir, filepath.Join(dir, ProcessedDir), filepath.Join(dir, FailedDir)} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", sub, err)
		}
	}
	return &Inbox{dir: dir, analyzer: analyzer, debounce: debounce, logger: logger}, nil
}

// Run watches the inbox and enqueues every archive until ctx is done.
func (in *Inbox) Run(ctx context.Context, q async.Queue) error {
	paths, errs, err := StartWatcher(ctx, WatchConfig{Dir: in.dir, InitialScan: true, Debounce: in.debounce}, in.logger)
	if err != nil {
		return err
	}
	in.logger.Info("inbox.watching", "dir", in.dir)
	for {
		select {
		case p, ok := <-paths:
			if !ok {
				return nil
			}
			if err := q.Enqueue(ctx, async.Job{Path: p}); err != nil {
				if errors.Is(err, async.ErrClosed) || ctx.Err() != nil {
					return nil
				}
				in.logger.Warn("inbox.enqueue.failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			in.logger.Warn("inbox.watch.error", "error", err)
		}
	}
}

// Handle is the async.Handler for inbox jobs.
func (in *Inbox) Handle(ctx context.Context, job async.Job) error {
	ctx = common.WithFileName(ctx, filepath.Base(job.Path))
	log := common.LoggerWith(ctx, in.logger)

	data, err := os.ReadFile(job.Path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug("inbox.job.gone", "path", job.Path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	report, err := in.analyzer.AnalyzeAndSave(ctx, data)
	dest := ProcessedDir
	if err != nil || report.Status == constants.ReportStatusError {
		dest = FailedDir
	}
	target, mvErr := in.move(job.Path, dest)
	if mvErr != nil {
		return errors.Join(err, mvErr)
	}
	if werr := writeReport(target, report); werr != nil {
		log.Warn("inbox.report.write_failed", "error", werr)
	}
	log.Info("inbox.job.done", "status", report.Status, "report_id", report.ID, "moved_to", target)
	return err
}

// move renames path into dir/sub, suffixing a timestamp on collision.
func (in *Inbox) move(path, sub string) (string, error) {
	base := filepath.Base(path)
	target := filepath.Join(in.dir, sub, base)
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(base)
		target = filepath.Join(in.dir, sub, fmt.Sprintf("%s-%d%s", strings.TrimSuffix(base, ext), time.Now().UnixNano(), ext))
	}
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("move archive: %w", err)
	}
	return target, nil
}
