package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/insurance-validator/constants"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

type divergencyReply struct {
	Divergencies []struct {
		Type        string             `json:"type"`
		Field       string             `json:"field"`
		Files       []string           `json:"files"`
		Values      map[string]*string `json:"values"`
		Description *string            `json:"description"`
	} `json:"divergencies"`
}

// DivergencyComparer delegates cross-document comparison to the model.
// Callers pass only records that carry data and must re-check the output.
type DivergencyComparer struct {
	completer Completer
	policy    RetryPolicy
	logger    *slog.Logger
}

func NewDivergencyComparer(completer Completer, logger *slog.Logger) *DivergencyComparer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DivergencyComparer{completer: completer, policy: DivergencyPolicy(), logger: logger}
}

func (c *DivergencyComparer) Compare(ctx context.Context, records []entity.Record) ([]entity.Divergency, error) {
	log := common.LoggerWith(ctx, c.logger)
	start := time.Now()

	docs := make([]DivergencyDocument, len(records))
	for i, r := range records {
		docs[i] = DivergencyDocument{
			FileName:     r.FileName,
			PersonalData: plain(r.PersonalFields),
			VehicleData:  plain(r.VehicleFields),
		}
	}
	req := CompletionRequest{
		System: BuildDivergencySystemPrompt(),
		User:   BuildDivergencyUserPrompt(docs),
		JSON:   true,
	}

	reply, err := Do(ctx, c.policy, log, func(ctx context.Context) (divergencyReply, error) {
		content, err := c.completer.Complete(ctx, req)
		if err != nil {
			return divergencyReply{}, common.NewExternalServiceError("divergency completion failed", err)
		}
		var out divergencyReply
		_, err = DecodeJSON(content, divergencySchema, &out)
		return out, err
	})
	if err != nil {
		log.Error("llm.divergency.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	out := make([]entity.Divergency, 0, len(reply.Divergencies))
	for _, d := range reply.Divergencies {
		div := entity.Divergency{
			Kind:   constants.DivergencyKind(d.Type),
			Field:  constants.FieldName(d.Field),
			Files:  d.Files,
			Values: make(map[string]string, len(d.Values)),
		}
		for f, v := range d.Values {
			if v != nil {
				div.Values[f] = *v
			}
		}
		if d.Description != nil {
			div.Description = *d.Description
		}
		out = append(out, div)
	}
	log.Info("llm.divergency.ok", "documents", len(records), "divergencies", len(out), "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

func plain(f entity.Fields) map[string]*string {
	m := make(map[string]*string, len(f))
	for k, v := range f {
		m[string(k)] = v
	}
	return m
}
