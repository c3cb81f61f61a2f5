package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

const (
	msgNoUpload  = "Nenhum arquivo foi enviado"
	msgNotFound  = "Análise não encontrada"
	msgBadID     = "ID de análise inválido"
	msgTooLarge  = "Arquivo excede o tamanho máximo permitido"
	msgNoStore   = "Persistência não configurada"
	msgInternal  = "Internal server error"
	formFileName = "file"
)

type handlers struct {
	cfg      Config
	analyzer Analyzer
	reports  Reports
	logger   *slog.Logger
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Status  string `json:"status"`
}

type analyzeBody struct {
	Success    bool       `json:"success"`
	AnalysisID *uuid.UUID `json:"analysisId"`
	entity.Report
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type listBody struct {
	Success    bool            `json:"success"`
	Data       []entity.Report `json:"data"`
	Pagination pagination      `json:"pagination"`
}

type getBody struct {
	Success bool           `json:"success"`
	Data    *entity.Report `json:"data"`
}

func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) {
	log := common.LoggerWith(r.Context(), h.logger)
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)

	data, err := h.upload(r)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		return
	case err != nil:
		log.Warn("http.analyze.bad_upload", "error", err)
		writeError(w, http.StatusBadRequest, msgNoUpload)
		return
	case len(data) == 0:
		writeError(w, http.StatusBadRequest, msgNoUpload)
		return
	}

	report, err := h.analyzer.AnalyzeAndSave(r.Context(), data)
	if err != nil {
		log.Error("http.analyze.failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	body := analyzeBody{Success: true, Report: report}
	if report.ID != uuid.Nil {
		id := report.ID
		body.AnalysisID = &id
	}
	writeJSON(w, http.StatusOK, body)
}

// upload reads the archive from the multipart field "file", or from the
// raw body for application/zip and application/octet-stream requests.
func (h *handlers) upload(r *http.Request) ([]byte, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, err
		}
		f, _, err := r.FormFile(formFileName)
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	case "application/zip", "application/x-zip-compressed", "application/octet-stream":
		return io.ReadAll(r.Body)
	default:
		return nil, nil
	}
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusServiceUnavailable, msgNoStore)
		return
	}
	raw := chi.URLParam(r, "id")
	if err := common.NewValidator().Field("id", raw, common.Required(), common.ValidUUID()).Error(); err != nil {
		common.LoggerWith(r.Context(), h.logger).Info("http.get.bad_id", "error", err)
		writeError(w, http.StatusBadRequest, msgBadID)
		return
	}
	id := uuid.MustParse(raw)
	rep, err := h.reports.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	case err != nil:
		common.LoggerWith(r.Context(), h.logger).Error("http.get.failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, getBody{Success: true, Data: rep})
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusServiceUnavailable, msgNoStore)
		return
	}
	page := queryInt(r, "page")
	limit := queryInt(r, "limit")
	p, err := h.reports.List(r.Context(), page, limit)
	if err != nil {
		common.LoggerWith(r.Context(), h.logger).Error("http.list.failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, listBody{
		Success:    true,
		Data:       p.Items,
		Pagination: pagination{Page: p.Page, Limit: p.Limit, Total: p.Total, Pages: p.Pages},
	})
}

// queryInt reads an integer query parameter. Absent or malformed values
// read as 0, which repository.NormalizePage turns into its default.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Success: false, Error: msg, Status: "error"})
}
