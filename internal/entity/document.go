package entity

import "github.com/joseph-ayodele/insurance-validator/constants"

// Document is one PDF unpacked from an input archive.
type Document struct {
	FileName string
	RawBytes []byte
}

// ExtractionAttempt is the outcome of the text-layer/OCR stage for one document.
type ExtractionAttempt struct {
	Method     constants.ExtractionMethod
	Text       string
	Confidence float64 // 0..100
}

// RenderedPage is a rasterized PDF page. PageNumber is 1-based.
type RenderedPage struct {
	PageNumber int
	ImageBytes []byte
	MIME       string
	WidthPx    int
	HeightPx   int
}

// PageExtraction is what the vision model returned for one page.
type PageExtraction struct {
	PageNumber     int
	PersonalFields Fields
	VehicleFields  Fields
	Evidence       map[constants.FieldName]string
	RawText        string
}

// Value returns the extracted value for name in whichever group holds it.
func (p PageExtraction) Value(name constants.FieldName) *string {
	if constants.IsPersonal(name) {
		return p.PersonalFields[name]
	}
	return p.VehicleFields[name]
}
