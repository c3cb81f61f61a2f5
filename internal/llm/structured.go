package llm

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

const DefaultMaxTextChars = 12000

type StructuredConfig struct {
	MaxTextChars int // input truncation; default DefaultMaxTextChars
}

// StructuredExtractor turns clean document text into field groups.
type StructuredExtractor struct {
	completer Completer
	cfg       StructuredConfig
	policy    RetryPolicy
	logger    *slog.Logger
}

func NewStructuredExtractor(completer Completer, cfg StructuredConfig, logger *slog.Logger) *StructuredExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = DefaultMaxTextChars
	}
	return &StructuredExtractor{completer: completer, cfg: cfg, policy: StructuredPolicy(), logger: logger}
}

// ExtractFromText asks the model for every field of both groups. Absent
// fields come back as null. Failures are ExternalServiceError.
func (e *StructuredExtractor) ExtractFromText(ctx context.Context, text, fileName string) (personal, vehicle entity.Fields, err error) {
	log := common.LoggerWith(ctx, e.logger)
	start := time.Now()

	text = truncateRunes(text, e.cfg.MaxTextChars)
	req := CompletionRequest{
		System: BuildStructuredSystemPrompt(),
		User:   BuildStructuredUserPrompt(text, fileName),
		JSON:   true,
	}

	reply, err := Do(ctx, e.policy, log, func(ctx context.Context) (StructuredFields, error) {
		content, err := e.completer.Complete(ctx, req)
		if err != nil {
			return StructuredFields{}, common.NewExternalServiceError("structured completion failed", err)
		}
		var out StructuredFields
		changed, err := DecodeJSON(content, structuredSchema, &out)
		if len(changed) > 0 {
			log.Warn("llm.structured.sanitized", "changed", changed)
		}
		return out, err
	})
	if err != nil {
		log.Error("llm.structured.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, nil, err
	}

	personal = toFields(constants.PersonalFields, reply.PersonalData)
	vehicle = toFields(constants.VehicleFields, reply.VehicleData)
	log.Info("llm.structured.ok",
		"text_len", len(text),
		"personal", personal.HasAny(),
		"vehicle", vehicle.HasAny(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return personal, vehicle, nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
