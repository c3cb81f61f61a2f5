package render

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// pdfcpu otherwise creates a config dir under the user's home.
	api.DisableConfigDir()
}

// Info summarizes the structure of a PDF.
type Info struct {
	Pages int
	Valid bool
	Issue string // validation failure, if any
}

// Inspect validates pdf in relaxed mode and counts its pages. A validation
// failure is reported in Info, not as an error.
func Inspect(pdf []byte) (Info, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	info := Info{Valid: true}
	if err := api.Validate(bytes.NewReader(pdf), conf); err != nil {
		info.Valid = false
		info.Issue = err.Error()
		return info, nil
	}
	n, err := api.PageCount(bytes.NewReader(pdf), conf)
	if err != nil {
		return info, err
	}
	info.Pages = n
	return info, nil
}
