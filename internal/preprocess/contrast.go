package preprocess

import (
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// clip is the fraction of darkest and brightest pixels ignored when picking
// the stretch bounds.
const clip = 0.01

// AutoContrast stretches luminance so the 1st and 99th percentiles map to
// black and white.
func AutoContrast(img image.Image) (image.Image, error) {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return nil, errors.New("empty image")
	}

	var hist [256]int
	src := imaging.Clone(img)
	for i := 0; i < len(src.Pix); i += 4 {
		hist[luma(src.Pix[i], src.Pix[i+1], src.Pix[i+2])]++
	}

	cut := int(float64(total) * clip)
	lo, hi := 0, 255
	for acc := 0; lo < 255; lo++ {
		acc += hist[lo]
		if acc > cut {
			break
		}
	}
	for acc := 0; hi > 0; hi-- {
		acc += hist[hi]
		if acc > cut {
			break
		}
	}
	if hi <= lo {
		return src, nil
	}

	var lut [256]uint8
	span := float64(hi - lo)
	for v := 0; v < 256; v++ {
		s := (float64(v) - float64(lo)) * 255 / span
		switch {
		case s < 0:
			s = 0
		case s > 255:
			s = 255
		}
		lut[v] = uint8(s + 0.5)
	}
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	}), nil
}

func luma(r, g, b uint8) uint8 {
	return uint8((299*int(r) + 587*int(g) + 114*int(b)) / 1000)
}

// Downscale shrinks img so its longest edge is at most maxEdge.
func Downscale(maxEdge int) Stage {
	return func(img image.Image) (image.Image, error) {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		edge := w
		if h > edge {
			edge = h
		}
		if maxEdge <= 0 || edge <= maxEdge {
			return img, nil
		}
		nw := w * maxEdge / edge
		nh := h * maxEdge / edge
		if nw < 1 || nh < 1 {
			return nil, errors.New("downscale to empty image")
		}
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		return dst, nil
	}
}
