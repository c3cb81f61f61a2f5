package ocr

import "context"

// Recognition is the engine output for one image.
type Recognition struct {
	Text       string
	Confidence float64 // mean word confidence, 0..100
}

// Engine recognizes text in an encoded image (PNG or JPEG).
type Engine interface {
	Recognize(ctx context.Context, image []byte, language string) (Recognition, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, image []byte, language string) (Recognition, error)

func (f EngineFunc) Recognize(ctx context.Context, image []byte, language string) (Recognition, error) {
	return f(ctx, image, language)
}
