package async

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Enqueue after Shutdown.
var ErrClosed = errors.New("queue is shutting down")

// Job is one archive waiting to be analyzed.
type Job struct {
	Path        string
	Force       bool // enqueue even if the same path is already pending
	SubmittedAt time.Time
	TraceID     string
}

// Handler processes one job. Its error is logged, never retried.
type Handler func(ctx context.Context, job Job) error

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
