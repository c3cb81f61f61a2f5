package preprocess

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func noise(w, h int) *image.RGBA {
	r := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(r.Intn(256))
	}
	return img
}

func TestProcess_OCRModeProducesPNG(t *testing.T) {
	p := NewPreprocessor(Config{}, nil)
	in := entity.RenderedPage{PageNumber: 2, ImageBytes: encodePNG(t, noise(64, 48)), MIME: "image/png"}

	out := p.Process(context.Background(), in, ModeOCR)
	assert.Equal(t, 2, out.PageNumber)
	assert.Equal(t, "image/png", out.MIME)
	assert.Equal(t, 64, out.WidthPx)
	assert.Equal(t, 48, out.HeightPx)

	decoded, err := png.Decode(bytes.NewReader(out.ImageBytes))
	require.NoError(t, err)
	c := color.NRGBAModel.Convert(decoded.At(10, 10)).(color.NRGBA)
	assert.Equal(t, c.R, c.G, "ocr output is grayscale")
	assert.Equal(t, c.G, c.B)
}

func TestProcess_VisionModeSwitchesToJPEGAboveThreshold(t *testing.T) {
	p := NewPreprocessor(Config{VisionJPEGThreshold: 1000}, nil)
	in := entity.RenderedPage{PageNumber: 1, ImageBytes: encodePNG(t, noise(80, 80))}
	require.Greater(t, len(in.ImageBytes), 1000)

	out := p.Process(context.Background(), in, ModeVision)
	assert.Equal(t, "image/jpeg", out.MIME)
	_, format, err := image.DecodeConfig(bytes.NewReader(out.ImageBytes))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestProcess_VisionModeKeepsPNGBelowThreshold(t *testing.T) {
	p := NewPreprocessor(Config{}, nil)
	in := entity.RenderedPage{PageNumber: 1, ImageBytes: encodePNG(t, noise(40, 40))}

	out := p.Process(context.Background(), in, ModeVision)
	assert.Equal(t, "image/png", out.MIME)
}

func TestProcess_FailsOpenOnUndecodableInput(t *testing.T) {
	p := NewPreprocessor(Config{}, nil)
	in := entity.RenderedPage{PageNumber: 4, ImageBytes: []byte("definitely not an image"), MIME: "image/png", WidthPx: 10}

	for _, mode := range []Mode{ModeOCR, ModeVision, Mode("bogus")} {
		out := p.Process(context.Background(), in, mode)
		assert.Equal(t, in, out, "mode %s", mode)
	}
}

func TestFailOpen_StageErrorAndPanicReturnInput(t *testing.T) {
	in := noise(4, 4)
	logger := NewPreprocessor(Config{}, nil).logger

	failing := failOpen("boom", func(image.Image) (image.Image, error) { return nil, errors.New("boom") }, logger)
	assert.Same(t, in, failing(in).(*image.RGBA))

	panicking := failOpen("panic", func(image.Image) (image.Image, error) { panic("bad kernel") }, logger)
	assert.Same(t, in, panicking(in).(*image.RGBA))
}

func TestAutoContrast_StretchesRange(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 1))
	for x := 0; x < 100; x++ {
		img.SetGray(x, 0, color.Gray{Y: uint8(100 + x/2)}) // 100..149
	}
	out, err := AutoContrast(img)
	require.NoError(t, err)

	n := imaging.Clone(out)
	minV, maxV := uint8(255), uint8(0)
	for i := 0; i < len(n.Pix); i += 4 {
		if n.Pix[i] < minV {
			minV = n.Pix[i]
		}
		if n.Pix[i] > maxV {
			maxV = n.Pix[i]
		}
	}
	assert.LessOrEqual(t, minV, uint8(10))
	assert.GreaterOrEqual(t, maxV, uint8(245))
}

func TestAutoContrast_FlatImageUnchanged(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	out, err := AutoContrast(img)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), out.Bounds())
}

func TestDownscale(t *testing.T) {
	out, err := Downscale(50)(noise(200, 100))
	require.NoError(t, err)
	assert.Equal(t, 50, out.Bounds().Dx())
	assert.Equal(t, 25, out.Bounds().Dy())

	same := noise(20, 10)
	out, err = Downscale(50)(same)
	require.NoError(t, err)
	assert.Same(t, same, out.(*image.RGBA))
}
