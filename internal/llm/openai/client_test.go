package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/insurance-validator/internal/llm"
)

func newServer(t *testing.T, status int, reply string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		if seen != nil {
			assert.NoError(t, json.Unmarshal(b, seen))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete_TextRequest(t *testing.T) {
	var body map[string]any
	srv := newServer(t, http.StatusOK, `{"choices":[{"message":{"content":"  {\"ok\":true}  "}}]}`, &body)
	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"}, nil)

	out, err := c.Complete(context.Background(), llm.CompletionRequest{System: "sys", User: "hello", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[1].(map[string]any)["content"])
}

func TestComplete_ImageUsesVisionModelAndDataURL(t *testing.T) {
	var body map[string]any
	srv := newServer(t, http.StatusOK, `{"choices":[{"message":{"content":"{}"}}]}`, &body)
	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, VisionModel: "gpt-4o"}, nil)

	_, err := c.Complete(context.Background(), llm.CompletionRequest{
		User:   "page 1",
		Images: []llm.Image{{MIME: "image/jpeg", Data: []byte("abc")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", body["model"])
	_, hasFormat := body["response_format"]
	assert.False(t, hasFormat)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	parts := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "data:image/jpeg;base64,YWJj", img["url"])
}

func TestComplete_NoChoicesIsEmpty(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"choices":[]}`, nil)
	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)

	out, err := c.Complete(context.Background(), llm.CompletionRequest{User: "x"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestComplete_Non2xx(t *testing.T) {
	srv := newServer(t, http.StatusTooManyRequests, `{"error":"slow down"}`, nil)
	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)

	_, err := c.Complete(context.Background(), llm.CompletionRequest{User: "x"})
	require.Error(t, err)
	var se *llm.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
	assert.True(t, strings.Contains(se.Body, "slow down"))
}

func TestComplete_BadJSON(t *testing.T) {
	srv := newServer(t, http.StatusOK, `not json`, nil)
	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)

	_, err := c.Complete(context.Background(), llm.CompletionRequest{User: "x"})
	assert.ErrorContains(t, err, "decode openai response")
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{APIKey: "k", RatePerMinute: 120}, nil)
	assert.Equal(t, "https://api.openai.com/v1", c.cfg.BaseURL)
	assert.Equal(t, "gpt-4o-mini", c.cfg.VisionModel)
	require.NotNil(t, c.limiter)

	c = NewClient(Config{APIKey: "k"}, nil)
	assert.Nil(t, c.limiter)
}
