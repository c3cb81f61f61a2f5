package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/insurance-validator/internal/common"
)

type fakeDoc struct {
	pages  []*image.RGBA
	failOn map[int]bool
	dpis   []float64
	closed bool
}

func (d *fakeDoc) NumPage() int { return len(d.pages) }

func (d *fakeDoc) ImageDPI(n int, dpi float64) (*image.RGBA, error) {
	d.dpis = append(d.dpis, dpi)
	if d.failOn[n] {
		return nil, errors.New("rasterizer crashed")
	}
	return d.pages[n], nil
}

func (d *fakeDoc) Close() error { d.closed = true; return nil }

// noisyPage encodes to a PNG well above the byte floor.
func noisyPage(seed int64) *image.RGBA {
	r := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256)), 255})
		}
	}
	return img
}

// blankPage encodes to a few hundred bytes.
func blankPage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func openerFor(d *fakeDoc) Opener {
	return func([]byte) (Document, error) { return d, nil }
}

func TestRender_DropsPagesBelowFloor(t *testing.T) {
	doc := &fakeDoc{pages: []*image.RGBA{noisyPage(1), blankPage(), noisyPage(3)}}
	r := NewRenderer(Config{}, openerFor(doc), nil)

	pages, err := r.Render(context.Background(), []byte("%PDF"), ScaleVision)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, 3, pages[1].PageNumber)
	for _, p := range pages {
		assert.GreaterOrEqual(t, len(p.ImageBytes), MinPageBytes)
		assert.Equal(t, "image/png", p.MIME)
		assert.Equal(t, 200, p.WidthPx)
		assert.Equal(t, 200, p.HeightPx)
	}
	assert.True(t, doc.closed)
	for _, dpi := range doc.dpis {
		assert.InDelta(t, 144.0, dpi, 0.001)
	}
}

func TestRender_AllPagesBlankIsRenderError(t *testing.T) {
	doc := &fakeDoc{pages: []*image.RGBA{blankPage(), blankPage()}}
	r := NewRenderer(Config{}, openerFor(doc), nil)

	pages, err := r.Render(context.Background(), []byte("%PDF"), ScaleOCR)
	assert.Nil(t, pages)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRender)
}

func TestRender_PageFailureSkipsPage(t *testing.T) {
	doc := &fakeDoc{pages: []*image.RGBA{noisyPage(1), noisyPage(2)}, failOn: map[int]bool{0: true}}
	r := NewRenderer(Config{}, openerFor(doc), nil)

	pages, err := r.Render(context.Background(), nil, ScaleOCR)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 2, pages[0].PageNumber)
}

func TestRender_OpenFailure(t *testing.T) {
	r := NewRenderer(Config{}, func([]byte) (Document, error) { return nil, errors.New("not a pdf") }, nil)
	_, err := r.Render(context.Background(), []byte("junk"), ScaleOCR)
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeRender))
}

func TestRender_MaxPages(t *testing.T) {
	doc := &fakeDoc{pages: []*image.RGBA{noisyPage(1), noisyPage(2), noisyPage(3)}}
	r := NewRenderer(Config{MaxPages: 2}, openerFor(doc), nil)

	pages, err := r.Render(context.Background(), nil, ScaleOCR)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestRender_ContextCancelled(t *testing.T) {
	doc := &fakeDoc{pages: []*image.RGBA{noisyPage(1)}}
	r := NewRenderer(Config{}, openerFor(doc), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, nil, ScaleOCR)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, doc.dpis, "no page rendered after cancellation")
}

func TestInspect_GarbageIsInvalid(t *testing.T) {
	info, err := Inspect([]byte("this is not a pdf"))
	require.NoError(t, err)
	assert.False(t, info.Valid)
	assert.NotEmpty(t, info.Issue)
}
