package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/facet/internal/vision"
)

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

func newServer(t *testing.T, got *generateRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))

		resp := map[string]interface{}{
			"model":    got.Model,
			"response": `{"mood": "calm"}`,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOllamaAnalyze(t *testing.T) {
	var got generateRequest
	server := newServer(t, &got)

	analyzer := NewOllamaAnalyzer(server.URL, "llava")

	imageData := []byte{0xFF, 0xD8, 0xFF, 0xE0} // JPEG header
	text, err := analyzer.Analyze(context.Background(), vision.Request{
		Instruction: "describe",
		Input:       vision.Input{ImageData: imageData, MimeType: "image/jpeg"},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"mood": "calm"}`, text)
	assert.Equal(t, "llava", got.Model)
	assert.Equal(t, "describe", got.Prompt)
	assert.Equal(t, []string{"/9j/4A=="}, got.Images)
	assert.False(t, got.Stream)
}

func TestOllamaAnalyzeTextInput(t *testing.T) {
	var got generateRequest
	server := newServer(t, &got)

	analyzer := NewOllamaAnalyzer(server.URL, "llava")

	_, err := analyzer.Analyze(context.Background(), vision.Request{
		Instruction: "rewrite",
		Input:       vision.Input{Text: "a fox"},
	})

	require.NoError(t, err)
	assert.Equal(t, "rewrite\n\na fox", got.Prompt)
	assert.Empty(t, got.Images)
}

func TestOllamaAnalyzeNetworkError(t *testing.T) {
	analyzer := NewOllamaAnalyzer("http://localhost:99999", "llava")

	_, err := analyzer.Analyze(context.Background(), vision.Request{Instruction: "x"})

	assert.Error(t, err)
}

func TestOllamaAnalyzeInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	analyzer := NewOllamaAnalyzer(server.URL, "llava")

	_, err := analyzer.Analyze(context.Background(), vision.Request{Instruction: "x"})

	assert.ErrorContains(t, err, "status 500")
}
