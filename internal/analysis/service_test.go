package analysis

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/archive"
	"github.com/joseph-ayodele/insurance-validator/internal/cache"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/divergency"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

var fixed = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeUnpacker struct {
	docs []entity.Document
	err  error
}

func (f fakeUnpacker) Unpack(context.Context, []byte) ([]entity.Document, error) { return f.docs, f.err }

// byName answers each document with a scripted record or error.
type byName struct {
	values map[string]map[constants.FieldName]string
	errs   map[string]error
	seen   []string
	hook   func(name string)
}

func (b *byName) Process(_ context.Context, doc entity.Document) (entity.Record, error) {
	b.seen = append(b.seen, doc.FileName)
	if b.hook != nil {
		b.hook(doc.FileName)
	}
	if err := b.errs[doc.FileName]; err != nil {
		return entity.FailedRecord(doc.FileName, err), err
	}
	rec := entity.NewRecord(doc.FileName)
	for f, v := range b.values[doc.FileName] {
		if constants.IsPersonal(f) {
			rec.PersonalFields.Set(f, v)
		} else {
			rec.VehicleFields.Set(f, v)
		}
	}
	rec.Metadata.Method = constants.MethodText
	return rec, nil
}

type memStore struct {
	saved []entity.Report
	err   error
}

func (m *memStore) Save(_ context.Context, r *entity.Report) (uuid.UUID, error) {
	if m.err != nil {
		return uuid.Nil, m.err
	}
	r.ID = uuid.New()
	m.saved = append(m.saved, *r)
	return r.ID, nil
}

func docs(names ...string) []entity.Document {
	out := make([]entity.Document, len(names))
	for i, n := range names {
		out[i] = entity.Document{FileName: n, RawBytes: []byte("%PDF " + n)}
	}
	return out
}

func newService(u Unpacker, p Processor, opts ...Option) *Service {
	opts = append(opts, WithClock(func() time.Time { return fixed }))
	return NewService(u, p, divergency.NewDetector(nil, nil), nil, opts...)
}

func TestAnalyze_ArchiveError(t *testing.T) {
	svc := newService(fakeUnpacker{err: common.NewArchiveError("invalid zip archive", errors.New("zip: not a valid zip file"))}, &byName{})
	rep := svc.Analyze(context.Background(), []byte("junk"))
	assert.Equal(t, constants.ReportStatusError, rep.Status)
	assert.Contains(t, rep.Message, "Erro ao analisar ZIP: ")
	assert.Empty(t, rep.Records)
	assert.NotNil(t, rep.Records)
	assert.Equal(t, fixed, rep.Timestamp)
}

func TestAnalyze_NoPDFs(t *testing.T) {
	rep := newService(fakeUnpacker{}, &byName{}).Analyze(context.Background(), nil)
	assert.Equal(t, constants.ReportStatusError, rep.Status)
	assert.Equal(t, "Nenhum arquivo PDF encontrado no ZIP", rep.Message)
}

func TestAnalyze_AllConsistent(t *testing.T) {
	p := &byName{values: map[string]map[constants.FieldName]string{
		"a.pdf": {constants.FieldPlaca: "ABC1234", constants.FieldNome: "Maria"},
		"b.pdf": {constants.FieldNome: "Maria"},
	}}
	rep := newService(fakeUnpacker{docs: docs("a.pdf", "b.pdf")}, p).Analyze(context.Background(), nil)
	assert.Equal(t, constants.ReportStatusOK, rep.Status)
	assert.Equal(t, "Documentos analisados: 2. ✓ Todos os documentos estão aptos para prosseguimento.", rep.Message)
	assert.Len(t, rep.Records, 2)
	assert.Empty(t, rep.Divergencies)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, p.seen)
}

func TestAnalyze_Divergencies(t *testing.T) {
	p := &byName{values: map[string]map[constants.FieldName]string{
		"a.pdf": {constants.FieldPlaca: "ABC1234"},
		"b.pdf": {constants.FieldPlaca: "XYZ9999"},
	}}
	rep := newService(fakeUnpacker{docs: docs("a.pdf", "b.pdf")}, p).Analyze(context.Background(), nil)
	assert.Equal(t, constants.ReportStatusDivergencies, rep.Status)
	assert.Equal(t, "Documentos analisados: 2. Divergências encontradas: 1", rep.Message)
	require.Len(t, rep.Divergencies, 1)
	assert.Equal(t, constants.FieldPlaca, rep.Divergencies[0].Field)
}

func TestAnalyze_FailedDocumentIsIsolated(t *testing.T) {
	p := &byName{
		values: map[string]map[constants.FieldName]string{
			"a.pdf": {constants.FieldCor: "Preta"},
			"c.pdf": {constants.FieldCor: "Branca"},
		},
		errs: map[string]error{"b.pdf": common.NewRenderError("no valid pages", nil)},
	}
	rep := newService(fakeUnpacker{docs: docs("a.pdf", "b.pdf", "c.pdf")}, p).Analyze(context.Background(), nil)
	require.Len(t, rep.Records, 3)
	assert.True(t, rep.Records[1].Failed())
	assert.Contains(t, rep.Records[1].Error, "RENDER_ERROR")
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, p.seen)
	assert.Equal(t, constants.ReportStatusDivergencies, rep.Status)
	assert.Equal(t, "Documentos analisados: 3. Divergências encontradas: 1", rep.Message)
	assert.Equal(t, []string{"a.pdf", "c.pdf"}, rep.Divergencies[0].Files)
}

func TestAnalyze_AllDocumentsFailed(t *testing.T) {
	boom := common.NewExternalServiceError("invalid json", nil)
	p := &byName{errs: map[string]error{"a.pdf": boom, "b.pdf": boom}}
	rep := newService(fakeUnpacker{docs: docs("a.pdf", "b.pdf")}, p).Analyze(context.Background(), nil)
	assert.Equal(t, constants.ReportStatusError, rep.Status)
	assert.Equal(t, "Documentos analisados: 2. Falha ao processar todos os documentos.", rep.Message)
	assert.Len(t, rep.Records, 2)
}

func TestAnalyze_CancelledBetweenDocuments(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &byName{hook: func(name string) {
		if name == "a.pdf" {
			cancel()
		}
	}}
	rep := newService(fakeUnpacker{docs: docs("a.pdf", "b.pdf")}, p).Analyze(ctx, nil)
	assert.Equal(t, constants.ReportStatusError, rep.Status)
	assert.Contains(t, rep.Message, context.Canceled.Error())
	assert.Equal(t, []string{"a.pdf"}, p.seen)
	assert.Empty(t, rep.Records)
}

func TestAnalyze_CacheReusesRecords(t *testing.T) {
	rc := cache.NewRecordCache(cache.NewMemoryStore(0), time.Hour, nil)
	p := &byName{values: map[string]map[constants.FieldName]string{
		"a.pdf": {constants.FieldAno: "2019"},
	}}
	svc := newService(fakeUnpacker{docs: docs("a.pdf")}, p, WithCache(rc))
	svc.Analyze(context.Background(), nil)

	// Same bytes under another name: served from cache.
	renamed := []entity.Document{{FileName: "copia.pdf", RawBytes: []byte("%PDF a.pdf")}}
	svc.unpacker = fakeUnpacker{docs: renamed}
	rep := svc.Analyze(context.Background(), nil)

	assert.Equal(t, []string{"a.pdf"}, p.seen)
	require.Len(t, rep.Records, 1)
	assert.Equal(t, "copia.pdf", rep.Records[0].FileName)
	assert.Equal(t, "2019", rep.Records[0].VehicleFields.Get(constants.FieldAno))
}

func TestAnalyzeAndSave(t *testing.T) {
	store := &memStore{}
	p := &byName{values: map[string]map[constants.FieldName]string{"a.pdf": {constants.FieldCor: "Preta"}}}
	svc := newService(fakeUnpacker{docs: docs("a.pdf")}, p, WithStore(store))

	rep, err := svc.AnalyzeAndSave(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, rep.ID)
	require.Len(t, store.saved, 1)
	assert.Equal(t, rep.ID, store.saved[0].ID)

	store.err = errors.New("db down")
	_, err = svc.AnalyzeAndSave(context.Background(), nil)
	assert.ErrorContains(t, err, "db down")

	// Error reports are persisted too.
	store.err = nil
	svc.unpacker = fakeUnpacker{}
	rep, err = svc.AnalyzeAndSave(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, constants.ReportStatusError, rep.Status)
	assert.Len(t, store.saved, 2)
}

func TestAnalyze_RealArchive(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"apolice.pdf", "notas.txt", "CRLV.PDF"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, _ = w.Write([]byte("%PDF " + name))
	}
	require.NoError(t, zw.Close())

	p := &byName{values: map[string]map[constants.FieldName]string{
		"apolice.pdf": {constants.FieldChassi: "9BWZZZ377VT004251"},
		"CRLV.PDF":    {constants.FieldChassi: "9BWZZZ377VT004252"},
	}}
	svc := newService(archive.NewUnpacker(archive.Config{}, nil), p)
	rep := svc.Analyze(context.Background(), buf.Bytes())
	assert.Equal(t, []string{"apolice.pdf", "CRLV.PDF"}, p.seen)
	assert.Equal(t, constants.ReportStatusDivergencies, rep.Status)
}
