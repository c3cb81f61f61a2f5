package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
	"github.com/joseph-ayodele/insurance-validator/internal/repository"
)

type Analyzer interface {
	AnalyzeAndSave(ctx context.Context, data []byte) (entity.Report, error)
}

type Reports interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Report, error)
	List(ctx context.Context, page, limit int) (repository.Page, error)
}

type Config struct {
	RequestTimeout time.Duration
	MaxUploadBytes int64
	CORSOrigins    []string
}

func ConfigFromApp(c common.ServerConfig) Config {
	return Config{RequestTimeout: c.RequestTimeout, MaxUploadBytes: c.MaxUploadBytes, CORSOrigins: c.CORSOrigins}
}

// NewRouter wires the analysis API. reports may be nil when no store is
// configured; the read endpoints then answer 503.
func NewRouter(cfg Config, analyzer Analyzer, reports Reports, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Minute
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 64 << 20
	}
	h := &handlers{cfg: cfg, analyzer: analyzer, reports: reports, logger: logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestContext(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors(cfg.CORSOrigins))
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", h.analyze)
		r.Get("/analyses", h.list)
		r.Get("/analyses/{id}", h.get)
	})
	return r
}

// requestContext copies chi's request id into the context keys the rest
// of the service logs with, and logs each request once it completes.
func requestContext(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := common.WithRequestID(r.Context(), chimiddleware.GetReqID(r.Context()))
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))
			common.LoggerWith(ctx, logger).Info("http.request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

func cors(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			for _, o := range origins {
				o = strings.TrimSpace(o)
				if o == "*" || (o != "" && o == origin) {
					if o == "*" {
						w.Header().Set("Access-Control-Allow-Origin", "*")
					} else {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Add("Vary", "Origin")
					}
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
					break
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
