package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
	"github.com/joseph-ayodele/insurance-validator/internal/preprocess"
)

type stubRenderer struct {
	pages  []entity.RenderedPage
	err    error
	scales []float64
}

func (s *stubRenderer) Render(_ context.Context, _ []byte, scale float64) ([]entity.RenderedPage, error) {
	s.scales = append(s.scales, scale)
	return s.pages, s.err
}

type passthrough struct{ modes []preprocess.Mode }

func (p *passthrough) Process(_ context.Context, page entity.RenderedPage, mode preprocess.Mode) entity.RenderedPage {
	p.modes = append(p.modes, mode)
	return page
}

func pages(n int) []entity.RenderedPage {
	out := make([]entity.RenderedPage, n)
	for i := range out {
		out[i] = entity.RenderedPage{PageNumber: i + 1, ImageBytes: []byte{byte(i + 1)}}
	}
	return out
}

// scripted returns a canned recognition per page, keyed by the first image byte.
func scripted(results map[byte]Recognition, errs map[byte]error) Engine {
	return EngineFunc(func(_ context.Context, img []byte, lang string) (Recognition, error) {
		if err := errs[img[0]]; err != nil {
			return Recognition{}, err
		}
		return results[img[0]], nil
	})
}

func TestCascade_AcceptsOnlyConfidentNonEmptyPages(t *testing.T) {
	r := &stubRenderer{pages: pages(4)}
	prep := &passthrough{}
	eng := scripted(map[byte]Recognition{
		1: {Text: "APÓLICE DE SEGURO AUTOMÓVEL", Confidence: 90},
		2: {Text: "ruído", Confidence: 50}, // not strictly above 50
		3: {Text: "   ", Confidence: 99},
		4: {Text: "Placa ABC1234 Chassi 9BWZZZ377VT004251", Confidence: 70},
	}, nil)
	c := NewCascade(Config{}, r, prep, eng, nil)

	res, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.PagesAccepted)
	assert.Equal(t, 2, res.PagesSkipped)
	assert.InDelta(t, 80.0, res.Confidence, 0.0001)
	assert.Equal(t, "APÓLICE DE SEGURO AUTOMÓVEL\nPlaca ABC1234 Chassi 9BWZZZ377VT004251", res.Text)
	assert.False(t, res.Discarded)

	assert.Equal(t, []float64{1.5}, r.scales)
	for _, m := range prep.modes {
		assert.Equal(t, preprocess.ModeOCR, m)
	}
}

func TestCascade_QualityGateDiscardsShortLowConfidenceText(t *testing.T) {
	r := &stubRenderer{pages: pages(1)}
	eng := scripted(map[byte]Recognition{1: {Text: "abc def", Confidence: 55}}, nil)
	c := NewCascade(Config{}, r, &passthrough{}, eng, nil)

	res, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.True(t, res.Discarded)
}

func TestCascade_QualityGateCountsCharactersNotBytes(t *testing.T) {
	short := "Seção Câmbio Ação" // 17 characters, 21 bytes
	require.Less(t, len([]rune(short)), 20)
	require.GreaterOrEqual(t, len(short), 20)

	r := &stubRenderer{pages: pages(1)}
	eng := scripted(map[byte]Recognition{1: {Text: short, Confidence: 55}}, nil)
	res, err := NewCascade(Config{}, r, &passthrough{}, eng, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.True(t, res.Discarded)

	enough := "Seção Câmbio Ação ok" // 20 characters
	r = &stubRenderer{pages: pages(1)}
	eng = scripted(map[byte]Recognition{1: {Text: enough, Confidence: 55}}, nil)
	res, err = NewCascade(Config{}, r, &passthrough{}, eng, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, enough, res.Text)
	assert.False(t, res.Discarded)
}

func TestCascade_ShortButConfidentTextSurvives(t *testing.T) {
	r := &stubRenderer{pages: pages(1)}
	eng := scripted(map[byte]Recognition{1: {Text: "CPF 11122233344", Confidence: 85}}, nil)
	c := NewCascade(Config{}, r, &passthrough{}, eng, nil)

	res, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "CPF 11122233344", res.Text)
	assert.InDelta(t, 85.0, res.Confidence, 0.0001)
}

func TestCascade_EngineFailureSkipsPage(t *testing.T) {
	r := &stubRenderer{pages: pages(2)}
	eng := scripted(
		map[byte]Recognition{2: {Text: strings.Repeat("texto legível ", 3), Confidence: 75}},
		map[byte]error{1: errors.New("tesseract crashed")},
	)
	c := NewCascade(Config{}, r, &passthrough{}, eng, nil)

	res, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PagesAccepted)
	assert.Equal(t, 1, res.PagesSkipped)
	assert.NotEmpty(t, res.Text)
}

func TestCascade_NoAcceptedPagesMeansZeroConfidence(t *testing.T) {
	r := &stubRenderer{pages: pages(2)}
	eng := scripted(map[byte]Recognition{1: {Text: "", Confidence: 0}, 2: {Text: "x", Confidence: 10}}, nil)
	c := NewCascade(Config{}, r, &passthrough{}, eng, nil)

	res, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Confidence)
	assert.Empty(t, res.Text)
}

func TestCascade_RenderErrorReturned(t *testing.T) {
	r := &stubRenderer{err: common.NewRenderError("no valid pages", nil)}
	c := NewCascade(Config{}, r, &passthrough{}, scripted(nil, nil), nil)

	_, err := c.Run(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrRender)
}

func TestCascade_Cancelled(t *testing.T) {
	r := &stubRenderer{pages: pages(2)}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	eng := EngineFunc(func(context.Context, []byte, string) (Recognition, error) {
		calls++
		cancel()
		return Recognition{Text: "texto suficiente para passar", Confidence: 90}, nil
	})
	c := NewCascade(Config{}, r, &passthrough{}, eng, nil)

	_, err := c.Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestParseTSV(t *testing.T) {
	tsv := strings.Join([]string{
		"level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext",
		"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t",
		"5\t1\t1\t1\t1\t1\t10\t10\t20\t10\t96.5\tNome:",
		"5\t1\t1\t1\t1\t2\t40\t10\t20\t10\t91.5\tMaria",
		"5\t1\t1\t1\t2\t1\t10\t30\t20\t10\t88\tCPF",
		"5\t1\t1\t1\t2\t2\t40\t30\t20\t10\t-1\t",
	}, "\n")
	rec := ParseTSV(tsv)
	assert.Equal(t, "Nome: Maria\nCPF", rec.Text)
	assert.InDelta(t, 92.0, rec.Confidence, 0.0001)

	assert.Equal(t, Recognition{}, ParseTSV("level\tconf\n"))
}

type fakeRunner struct {
	name string
	args []string
	out  string
	err  error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name, f.args = name, args
	return []byte(f.out), []byte("boom"), f.err
}

func TestCLIEngine_BuildsArgsAndParses(t *testing.T) {
	fr := &fakeRunner{out: "level\n5\t1\t1\t1\t1\t1\t0\t0\t1\t1\t80\tPlaca\n"}
	e := NewCLIEngine("", "/usr/share/tessdata", fr)
	e.PSM = 6

	rec, err := e.Recognize(context.Background(), []byte("png"), "por")
	require.NoError(t, err)
	assert.Equal(t, "Placa", rec.Text)
	assert.InDelta(t, 80.0, rec.Confidence, 0.0001)

	assert.Equal(t, "tesseract", fr.name)
	require.GreaterOrEqual(t, len(fr.args), 2)
	assert.Equal(t, "stdout", fr.args[1])
	assert.Contains(t, strings.Join(fr.args, " "), "-l por --psm 6 --tessdata-dir /usr/share/tessdata tsv")
}

func TestCLIEngine_RunnerError(t *testing.T) {
	e := NewCLIEngine("tesseract", "", &fakeRunner{err: errors.New("exit status 1")})
	_, err := e.Recognize(context.Background(), []byte("png"), "por")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestClean(t *testing.T) {
	in := "Nome:\tMaria\r\n-----\n\n\n\nPlaca   ABC1234  "
	assert.Equal(t, "Nome: Maria\n\nPlaca ABC1234", Clean(in))
}
