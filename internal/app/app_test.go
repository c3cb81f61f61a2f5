package app

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/llm"
	"github.com/joseph-ayodele/insurance-validator/internal/ocr"
)

func testConfig() *common.Config {
	return &common.Config{
		Database:   common.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
		OCR:        common.OCRConfig{Engine: "cli", Language: "por"},
		Divergency: common.DivergencyConfig{Mode: "llm"},
		LLM:        common.LLMConfig{APIKey: "test"},
	}
}

func zipOf(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func build(t *testing.T, persist bool) (*App, *int) {
	t.Helper()
	calls := 0
	a, err := Build(context.Background(), testConfig(), Options{
		Persist: persist,
		Completer: llm.CompleterFunc(func(context.Context, llm.CompletionRequest) (string, error) {
			calls++
			return "{}", nil
		}),
		Engine: ocr.EngineFunc(func(context.Context, []byte, string) (ocr.Recognition, error) {
			return ocr.Recognition{}, nil
		}),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, &calls
}

func TestBuild_WithoutPersistence(t *testing.T) {
	a, _ := build(t, false)
	assert.NotNil(t, a.Analysis)
	assert.NotNil(t, a.Pipeline)
	assert.Nil(t, a.Reports)
	assert.Nil(t, a.DB())
}

func TestBuild_PersistsErrorReports(t *testing.T) {
	a, calls := build(t, true)
	require.NotNil(t, a.Reports)
	ctx := context.Background()

	rep, err := a.Analysis.AnalyzeAndSave(ctx, []byte("not a zip"))
	require.NoError(t, err)
	assert.Equal(t, constants.ReportStatusError, rep.Status)

	rep, err = a.Analysis.AnalyzeAndSave(ctx, zipOf(t, map[string][]byte{"leia-me.txt": []byte("oi")}))
	require.NoError(t, err)
	assert.Equal(t, "Nenhum arquivo PDF encontrado no ZIP", rep.Message)

	page, err := a.Reports.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	stored, err := a.Reports.GetByID(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.Message, stored.Message)
	assert.Zero(t, *calls)
}

func TestBuild_UnreadablePDFFailsTheBatch(t *testing.T) {
	a, calls := build(t, false)

	rep := a.Analysis.Analyze(context.Background(), zipOf(t, map[string][]byte{"apolice.pdf": []byte("garbage")}))
	require.Len(t, rep.Records, 1)
	assert.True(t, rep.Records[0].Failed())
	assert.Contains(t, rep.Message, "Falha ao processar todos os documentos")
	assert.Zero(t, *calls)
}
