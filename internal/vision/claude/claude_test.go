package claude

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/facet/internal/vision"
)

type sentMessage struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type   string `json:"type"`
			Text   string `json:"text"`
			Source *struct {
				Type      string `json:"type"`
				MediaType string `json:"media_type"`
				Data      string `json:"data"`
			} `json:"source"`
		} `json:"content"`
	} `json:"messages"`
}

func newServer(t *testing.T, sent *sentMessage) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-session", r.Header.Get("X-Api-Key"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, sent))

		resp := map[string]interface{}{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-opus-4-6",
			"stop_reason": "end_turn",
			"content": []map[string]interface{}{
				{"type": "text", "text": "```json\n{\"mood\":\"calm\"}\n```"},
			},
			"usage": map[string]int{"input_tokens": 10, "output_tokens": 5},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClaudeAnalyze(t *testing.T) {
	var sent sentMessage
	server := newServer(t, &sent)

	analyzer := NewClaudeAnalyzer("sk-default", "claude-opus-4-6")
	analyzer.baseURL = server.URL

	text, err := analyzer.Analyze(context.Background(), vision.Request{
		APIKey:      "sk-session",
		Instruction: "describe",
		Input:       vision.Input{ImageData: []byte{0xFF, 0xD8}, MimeType: "image/heic"},
	})
	require.NoError(t, err)
	assert.Equal(t, "```json\n{\"mood\":\"calm\"}\n```", text)

	assert.Equal(t, "claude-opus-4-6", sent.Model)
	require.Len(t, sent.Messages, 1)
	content := sent.Messages[0].Content
	require.Len(t, content, 2)
	assert.Equal(t, "image", content[0].Type)
	require.NotNil(t, content[0].Source)
	assert.Equal(t, "image/jpeg", content[0].Source.MediaType)
	assert.Equal(t, "/9g=", content[0].Source.Data)
	assert.Equal(t, "describe", content[1].Text)
}

func TestClaudeAnalyzeTextInput(t *testing.T) {
	var sent sentMessage
	server := newServer(t, &sent)

	analyzer := NewClaudeAnalyzer("sk-session", "claude-opus-4-6")
	analyzer.baseURL = server.URL

	_, err := analyzer.Analyze(context.Background(), vision.Request{
		Instruction: "rewrite",
		Input:       vision.Input{Text: "a fox"},
	})
	require.NoError(t, err)

	content := sent.Messages[0].Content
	require.Len(t, content, 2)
	assert.Equal(t, "text", content[0].Type)
	assert.Equal(t, "a fox", content[0].Text)
	assert.Nil(t, content[0].Source)
}

func TestClaudeAnalyzeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"rate limited"}}`))
	}))
	defer server.Close()

	analyzer := NewClaudeAnalyzer("sk-test", "claude-opus-4-6")
	analyzer.baseURL = server.URL

	_, err := analyzer.Analyze(context.Background(), vision.Request{Instruction: "x", Input: vision.Input{Text: "y"}})
	assert.ErrorContains(t, err, "failed to call claude")
}

func TestNormaliseMIME(t *testing.T) {
	assert.Equal(t, "image/png", normaliseMIME("image/png"))
	assert.Equal(t, "image/webp", normaliseMIME("image/webp"))
	assert.Equal(t, "image/jpeg", normaliseMIME("image/bmp"))
}
