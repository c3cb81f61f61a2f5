package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

// DefaultMinImageBytes matches the renderer floor; smaller images carry no signal.
const DefaultMinImageBytes = 30000

type VisionConfig struct {
	MinImageBytes int
}

// VisionExtractor queries the vision model for one page at a time and asks
// for an evidence snippet next to every value.
type VisionExtractor struct {
	completer Completer
	cfg       VisionConfig
	policy    RetryPolicy
	logger    *slog.Logger
}

func NewVisionExtractor(completer Completer, cfg VisionConfig, logger *slog.Logger) *VisionExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinImageBytes <= 0 {
		cfg.MinImageBytes = DefaultMinImageBytes
	}
	return &VisionExtractor{completer: completer, cfg: cfg, policy: VisionPagePolicy(), logger: logger}
}

// ExtractFromImage returns the model's reading of one page. An empty reply
// is retried once; a second empty reply, a transport failure or a malformed
// reply is an ExternalServiceError.
func (v *VisionExtractor) ExtractFromImage(ctx context.Context, page entity.RenderedPage, fileName string) (entity.PageExtraction, error) {
	log := common.LoggerWith(ctx, v.logger).With("page", page.PageNumber)
	start := time.Now()

	if len(page.ImageBytes) < v.cfg.MinImageBytes {
		log.Warn("vision.page.too_small", "bytes", len(page.ImageBytes))
		return entity.PageExtraction{}, common.NewExternalServiceError(
			fmt.Sprintf("image too small for vision (%d bytes)", len(page.ImageBytes)), nil)
	}

	mime := page.MIME
	if mime == "" {
		mime = "image/png"
	}
	req := CompletionRequest{
		System: BuildVisionSystemPrompt(),
		User:   BuildVisionUserPrompt(fileName, page.PageNumber),
		Images: []Image{{MIME: mime, Data: page.ImageBytes}},
		JSON:   true,
	}

	reply, err := Do(ctx, v.policy, log, func(ctx context.Context) (visionResponse, error) {
		content, err := v.completer.Complete(ctx, req)
		if err != nil {
			return visionResponse{}, common.NewExternalServiceError("vision completion failed", err)
		}
		var out visionResponse
		changed, err := DecodeJSON(content, pageSchema, &out)
		if len(changed) > 0 {
			log.Debug("vision.page.sanitized", "changed", changed)
		}
		return out, err
	})
	if err != nil {
		log.Warn("vision.page.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return entity.PageExtraction{}, err
	}

	ext := entity.PageExtraction{
		PageNumber:     page.PageNumber,
		PersonalFields: toFields(constants.PersonalFields, reply.PersonalData),
		VehicleFields:  toFields(constants.VehicleFields, reply.VehicleData),
		Evidence:       make(map[constants.FieldName]string, len(reply.Evidence)),
		RawText:        reply.RawText,
	}
	for k, e := range reply.Evidence {
		if n := constants.FieldName(k); constants.ValidField(n) {
			ext.Evidence[n] = e
		}
	}
	log.Info("vision.page.ok",
		"raw_text_len", len(ext.RawText),
		"evidence", len(ext.Evidence),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ext, nil
}
