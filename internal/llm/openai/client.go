package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete implements llm.Completer over /chat/completions. Images are sent
// as data URL image parts on the user message. An empty assistant message is
// returned as "" without error so callers apply their own policy.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	log := common.LoggerWith(ctx, c.log)
	start := time.Now()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	model := c.cfg.Model
	if len(req.Images) > 0 {
		model = c.cfg.VisionModel
	}

	messages := make([]map[string]any, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]any{"role": "user", "content": userContent(req)})

	body := map[string]any{
		"model":       model,
		"temperature": c.cfg.Temperature,
		"messages":    messages,
	}
	if req.JSON {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, log)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		log.Error("llm.openai.decode_error", "error", err, "raw_bytes", len(raw))
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		log.Warn("llm.openai.no_choices", "elapsed_ms", time.Since(start).Milliseconds())
		return "", nil
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	log.Info("llm.openai.ok",
		"model", model,
		"images", len(req.Images),
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func userContent(req llm.CompletionRequest) any {
	if len(req.Images) == 0 {
		return req.User
	}
	parts := []map[string]any{{"type": "text", "text": req.User}}
	for _, img := range req.Images {
		parts = append(parts, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": DataURL(img)},
		})
	}
	return parts
}

// DataURL encodes img as a base64 data URL.
func DataURL(img llm.Image) string {
	mt := img.MIME
	if mt == "" {
		mt = "image/png"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
