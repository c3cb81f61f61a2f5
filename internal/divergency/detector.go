package divergency

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

// Comparer is an external comparison collaborator, typically a language model.
type Comparer interface {
	Compare(ctx context.Context, records []entity.Record) ([]entity.Divergency, error)
}

// Detector reports cross-document field conflicts. Without a comparer it
// uses the deterministic rules; with one, the comparer's findings are
// re-checked against the records, and the rules take over on failure.
type Detector struct {
	comparer Comparer
	logger   *slog.Logger
}

func NewDetector(comparer Comparer, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{comparer: comparer, logger: logger}
}

// Detect never returns nil.
func (d *Detector) Detect(ctx context.Context, records []entity.Record) []entity.Divergency {
	log := common.LoggerWith(ctx, d.logger)
	start := time.Now()

	if len(records) < 2 {
		return []entity.Divergency{}
	}
	eligible := Eligible(records)
	log.Info("divergency.filter", "records", len(records), "eligible", len(eligible))
	if len(eligible) < 2 {
		return []entity.Divergency{}
	}

	if d.comparer != nil {
		found, err := d.comparer.Compare(ctx, eligible)
		if err == nil {
			out := Revalidate(eligible, found)
			log.Info("divergency.external",
				"reported", len(found),
				"kept", len(out),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return out
		}
		log.Warn("divergency.external.fallback", "error", err)
	}

	out := Rules(eligible)
	log.Info("divergency.rules", "divergencies", len(out), "elapsed_ms", time.Since(start).Milliseconds())
	return out
}

// Eligible drops failed records and records without any field value.
func Eligible(records []entity.Record) []entity.Record {
	out := make([]entity.Record, 0, len(records))
	for _, r := range records {
		if r.Failed() || !r.HasData() {
			continue
		}
		out = append(out, r)
	}
	return out
}

type holder struct {
	file  string
	value string
}

// holders lists, in record order, the files with a non-blank value for name.
func holders(records []entity.Record, name constants.FieldName) []holder {
	var hs []holder
	for _, r := range records {
		v := r.Value(name)
		if v == nil {
			continue
		}
		s := strings.TrimSpace(*v)
		if s == "" {
			continue
		}
		hs = append(hs, holder{file: r.FileName, value: s})
	}
	return hs
}

func distinct(hs []holder) []string {
	seen := make(map[string]struct{}, len(hs))
	var out []string
	for _, h := range hs {
		if _, ok := seen[h.value]; ok {
			continue
		}
		seen[h.value] = struct{}{}
		out = append(out, h.value)
	}
	return out
}

// build keys values by file name; a name repeated across records gets a
// " (n)" suffix so no value is dropped.
func build(kind constants.DivergencyKind, name constants.FieldName, hs []holder, description string) entity.Divergency {
	d := entity.Divergency{
		Kind:   kind,
		Field:  name,
		Files:  make([]string, 0, len(hs)),
		Values: make(map[string]string, len(hs)),
	}
	taken := make(map[string]struct{}, len(hs))
	for _, h := range hs {
		name := constants.UniqueName(taken, h.file)
		d.Files = append(d.Files, name)
		d.Values[name] = h.value
	}
	if description == "" {
		description = describe(name, distinct(hs))
	}
	d.Description = description
	return d
}

func describe(name constants.FieldName, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return fmt.Sprintf("Valores diferentes para %s entre documentos: %s", name, strings.Join(quoted, ", "))
}

// Rules emits one inconsistent_data divergency per field for which at
// least two records hold different non-null values, after trimming.
// Null against a value, and null against null, are never reported.
func Rules(records []entity.Record) []entity.Divergency {
	out := []entity.Divergency{}
	for _, name := range constants.AllFields {
		hs := holders(records, name)
		if len(distinct(hs)) < 2 {
			continue
		}
		out = append(out, build(constants.DivergencyInconsistentData, name, hs, ""))
	}
	return out
}

// Revalidate keeps only the external findings that the records support:
// the field must be known, and the cited files (from Files or Values) that
// exist in records must hold at least two distinct non-null values. Values
// are replaced with the records' own values; one finding per field.
func Revalidate(records []entity.Record, found []entity.Divergency) []entity.Divergency {
	out := []entity.Divergency{}
	seen := make(map[constants.FieldName]struct{})
	for _, f := range found {
		if !constants.ValidField(f.Field) {
			continue
		}
		if _, dup := seen[f.Field]; dup {
			continue
		}
		cited := make(map[string]struct{}, len(f.Files)+len(f.Values))
		for _, name := range f.Files {
			cited[name] = struct{}{}
		}
		for name := range f.Values {
			cited[name] = struct{}{}
		}

		var hs []holder
		for _, h := range holders(records, f.Field) {
			if _, ok := cited[h.file]; ok {
				hs = append(hs, h)
			}
		}
		if len(distinct(hs)) < 2 {
			continue
		}
		kind := f.Kind
		if !constants.ValidDivergencyKind(kind) {
			kind = constants.DivergencyInconsistentData
		}
		seen[f.Field] = struct{}{}
		out = append(out, build(kind, f.Field, hs, strings.TrimSpace(f.Description)))
	}
	return out
}
