package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
	"github.com/joseph-ayodele/insurance-validator/internal/repository"
)

type fakeAnalyzer struct {
	got    []byte
	report entity.Report
	err    error
	reqID  string
}

func (f *fakeAnalyzer) AnalyzeAndSave(ctx context.Context, data []byte) (entity.Report, error) {
	f.got = data
	f.reqID = common.RequestIDFromContext(ctx)
	return f.report, f.err
}

type fakeReports struct {
	byID     map[uuid.UUID]entity.Report
	page     repository.Page
	gotPage  int
	gotLimit int
	listErr  error
}

func (f *fakeReports) GetByID(_ context.Context, id uuid.UUID) (*entity.Report, error) {
	r, ok := f.byID[id]
	if !ok {
		return nil, common.NewAppError(common.CodeNotFound, "report", nil)
	}
	return &r, nil
}

func (f *fakeReports) List(_ context.Context, page, limit int) (repository.Page, error) {
	f.gotPage, f.gotLimit = page, limit
	return f.page, f.listErr
}

func okReport() entity.Report {
	return entity.Report{
		ID:           uuid.MustParse("6f1c1b8e-0a55-4c4e-9a38-7d4a0c1d2e3f"),
		Status:       constants.ReportStatusOK,
		Message:      "Documentos analisados: 1. ✓ Todos os documentos estão aptos para prosseguimento.",
		Records:      []entity.Record{entity.NewRecord("a.pdf")},
		Divergencies: []entity.Divergency{},
		Timestamp:    time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func decode(t *testing.T, body *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body.Bytes(), &m))
	return m
}

func multipartBody(t *testing.T, field string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "lote.zip")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	h := NewRouter(Config{}, &fakeAnalyzer{}, nil, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalyze_Multipart(t *testing.T) {
	fa := &fakeAnalyzer{report: okReport()}
	h := NewRouter(Config{}, fa, nil, nil)

	body, ct := multipartBody(t, "file", []byte("PK-zip-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("PK-zip-bytes"), fa.got)
	assert.NotEmpty(t, fa.reqID)
	m := decode(t, rec.Body)
	assert.Equal(t, true, m["success"])
	assert.Equal(t, "6f1c1b8e-0a55-4c4e-9a38-7d4a0c1d2e3f", m["analysisId"])
	assert.Equal(t, "ok", m["status"])
	assert.Len(t, m["records"], 1)
}

func TestAnalyze_RawZipBody(t *testing.T) {
	fa := &fakeAnalyzer{report: okReport()}
	h := NewRouter(Config{}, fa, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader([]byte("PK")))
	req.Header.Set("Content-Type", "application/zip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("PK"), fa.got)
}

func TestAnalyze_NoFile(t *testing.T) {
	fa := &fakeAnalyzer{}
	h := NewRouter(Config{}, fa, nil, nil)

	cases := map[string]func() *http.Request{
		"wrong field": func() *http.Request {
			body, ct := multipartBody(t, "other", []byte("PK"))
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
			req.Header.Set("Content-Type", ct)
			return req
		},
		"empty file": func() *http.Request {
			body, ct := multipartBody(t, "file", nil)
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
			req.Header.Set("Content-Type", ct)
			return req
		},
		"no body": func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
		},
	}
	for name, mk := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, mk())
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			m := decode(t, rec.Body)
			assert.Equal(t, false, m["success"])
			assert.Equal(t, "Nenhum arquivo foi enviado", m["error"])
		})
	}
	assert.Nil(t, fa.got)
}

func TestAnalyze_TooLarge(t *testing.T) {
	h := NewRouter(Config{MaxUploadBytes: 4}, &fakeAnalyzer{}, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader([]byte("0123456789")))
	req.Header.Set("Content-Type", "application/zip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAnalyze_StoreFailure(t *testing.T) {
	h := NewRouter(Config{}, &fakeAnalyzer{err: errors.New("db down")}, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader([]byte("PK")))
	req.Header.Set("Content-Type", "application/zip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetAnalysis(t *testing.T) {
	rep := okReport()
	fr := &fakeReports{byID: map[uuid.UUID]entity.Report{rep.ID: rep}}
	h := NewRouter(Config{}, &fakeAnalyzer{}, fr, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses/"+rep.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode(t, rec.Body)
	assert.Equal(t, true, m["success"])
	assert.Equal(t, rep.ID.String(), m["data"].(map[string]any)["id"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Análise não encontrada", decode(t, rec.Body)["error"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAnalyses(t *testing.T) {
	fr := &fakeReports{page: repository.Page{Items: []entity.Report{okReport()}, Page: 2, Limit: 10, Total: 11, Pages: 2}}
	h := NewRouter(Config{}, &fakeAnalyzer{}, fr, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses?page=2&limit=abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, fr.gotPage)
	assert.Equal(t, 0, fr.gotLimit)

	m := decode(t, rec.Body)
	assert.Len(t, m["data"], 1)
	assert.Equal(t, map[string]any{"page": 2.0, "limit": 10.0, "total": 11.0, "pages": 2.0}, m["pagination"])
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/analyses?page=3&limit=x&neg=-2", nil)
	assert.Equal(t, 3, queryInt(r, "page"))
	assert.Equal(t, 0, queryInt(r, "limit"))
	assert.Equal(t, -2, queryInt(r, "neg"))
	assert.Equal(t, 0, queryInt(r, "missing"))
}

func TestReadEndpointsWithoutStore(t *testing.T) {
	h := NewRouter(Config{}, &fakeAnalyzer{}, nil, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(Config{CORSOrigins: []string{"http://localhost:5173"}}, &fakeAnalyzer{}, nil, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
