package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/insurance-validator/internal/common"
)

// ErrEmptyResponse is the cause of an ExternalServiceError for a blank reply.
var ErrEmptyResponse = errors.New("empty response")

var (
	reFenceOpen  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	reFenceClose = regexp.MustCompile("\\s*```$")
)

// StripFences removes a leading ```json (or ```) and a trailing ``` from a reply.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = reFenceOpen.ReplaceAllString(s, "")
	s = reFenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// DecodeJSON strips fences, sanitizes, validates against schema (when not
// nil) and unmarshals into out. Every failure is an ExternalServiceError;
// a blank reply wraps ErrEmptyResponse. The sanitized paths are returned
// for logging.
func DecodeJSON(content string, schema *Schema, out any) ([]string, error) {
	body := StripFences(content)
	if body == "" {
		return nil, common.NewExternalServiceError("no content in completion response", ErrEmptyResponse)
	}

	var top any
	if err := json.Unmarshal([]byte(body), &top); err != nil {
		return nil, common.NewExternalServiceError("invalid json in completion response", err)
	}
	doc, ok := top.(map[string]any)
	if !ok {
		return nil, common.NewExternalServiceError("completion response is not a json object", nil)
	}
	var groups []string
	if schema != nil {
		groups = schema.Groups
	}
	changed := SanitizeReply(doc, groups)

	if schema != nil {
		if err := schema.Validate(doc); err != nil {
			return changed, common.NewExternalServiceError("schema validation failed", err)
		}
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return changed, common.NewExternalServiceError("re-encode completion response", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return changed, common.NewExternalServiceError(fmt.Sprintf("decode into %T", out), err)
	}
	return changed, nil
}
