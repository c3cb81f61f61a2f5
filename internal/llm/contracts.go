package llm

import (
	"context"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

// Image is a binary payload attached to a completion request.
type Image struct {
	MIME string // image/png or image/jpeg
	Data []byte
}

type CompletionRequest struct {
	System string
	User   string
	Images []Image
	// JSON asks the provider for a JSON object response.
	JSON bool
}

// Completer is the transport our adapters depend on. Implementations return
// the raw assistant message, which may be empty or wrapped in fences.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

// StructuredFields is the field-group shape shared by the text and vision responses.
type StructuredFields struct {
	PersonalData map[string]*string `json:"personalData"`
	VehicleData  map[string]*string `json:"vehicleData"`
}

// visionResponse is the per-page JSON the vision model must return.
type visionResponse struct {
	StructuredFields
	RawText  string            `json:"rawText"`
	Evidence map[string]string `json:"evidence"`
}

// toFields copies known names from raw into a fully populated Fields.
func toFields(names []constants.FieldName, raw map[string]*string) entity.Fields {
	f := entity.NewFields(names)
	for _, n := range names {
		if v := raw[string(n)]; v != nil {
			f.Set(n, *v)
		}
	}
	return f
}
