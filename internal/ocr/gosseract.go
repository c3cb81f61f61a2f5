package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// GosseractEngine runs libtesseract in-process. Each call uses its own
// client; gosseract clients are not safe for concurrent use.
type GosseractEngine struct {
	TessdataDir string
	newClient   func() *gosseract.Client
}

func NewGosseractEngine(tessdataDir string) *GosseractEngine {
	return &GosseractEngine{TessdataDir: tessdataDir, newClient: gosseract.NewClient}
}

func (e *GosseractEngine) Recognize(ctx context.Context, image []byte, language string) (Recognition, error) {
	if err := ctx.Err(); err != nil {
		return Recognition{}, err
	}
	c := e.newClient()
	defer c.Close()

	if e.TessdataDir != "" {
		if err := c.SetTessdataPrefix(e.TessdataDir); err != nil {
			return Recognition{}, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if language != "" {
		if err := c.SetLanguage(language); err != nil {
			return Recognition{}, fmt.Errorf("set language: %w", err)
		}
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return Recognition{}, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return Recognition{}, fmt.Errorf("recognize text: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Recognition{Text: strings.TrimSpace(text)}, nil
	}
	var sum float64
	var n int
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		sum += b.Confidence
		n++
	}
	var conf float64
	if n > 0 {
		conf = sum / float64(n)
	}
	return Recognition{Text: strings.TrimSpace(text), Confidence: conf}, nil
}
