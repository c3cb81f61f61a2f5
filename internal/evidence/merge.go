package evidence

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

// Merger folds per-page extractions into one record's field groups.
type Merger struct {
	registry *Registry
	logger   *slog.Logger
}

func NewMerger(registry *Registry, logger *slog.Logger) *Merger {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{registry: registry, logger: logger}
}

// Merge picks, per field, the first page (by page number) whose value is
// backed by non-blank evidence; later pages never overwrite it. The winner
// is then checked against its own page's evidence by the field's rule and
// nulled when it fails. Both groups always carry every field.
func (m *Merger) Merge(ctx context.Context, pages []entity.PageExtraction) (personal, vehicle entity.Fields) {
	log := common.LoggerWith(ctx, m.logger)

	ordered := slices.Clone(pages)
	slices.SortStableFunc(ordered, func(a, b entity.PageExtraction) int { return a.PageNumber - b.PageNumber })

	personal = entity.NewFields(constants.PersonalFields)
	vehicle = entity.NewFields(constants.VehicleFields)

	var rejected, accepted []string
	for _, name := range constants.AllFields {
		value, ev, page, ok := firstBacked(ordered, name)
		if !ok {
			continue
		}
		kept, pass := m.registry.Validate(name, value, ev)
		if !pass {
			rejected = append(rejected, string(name))
			log.Debug("evidence.rejected", "field", name, "page", page)
			continue
		}
		accepted = append(accepted, string(name))
		if constants.IsPersonal(name) {
			personal.Set(name, kept)
		} else {
			vehicle.Set(name, kept)
		}
	}

	log.Info("evidence.merge",
		"pages", len(pages),
		"accepted", accepted,
		"rejected", rejected,
	)
	return personal, vehicle
}

func firstBacked(pages []entity.PageExtraction, name constants.FieldName) (value, evidence string, page int, ok bool) {
	for _, p := range pages {
		v := p.Value(name)
		if v == nil || strings.TrimSpace(*v) == "" {
			continue
		}
		ev := p.Evidence[name]
		if strings.TrimSpace(ev) == "" {
			continue
		}
		return *v, ev, p.PageNumber, true
	}
	return "", "", 0, false
}
