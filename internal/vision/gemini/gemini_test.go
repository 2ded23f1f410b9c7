package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/facet/internal/vision"
)

type capturedRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text       string `json:"text"`
			InlineData *struct {
				MimeType string `json:"mimeType"`
				Data     string `json:"data"`
			} `json:"inlineData"`
		} `json:"parts"`
	} `json:"contents"`
	SafetySettings []struct {
		Category  string `json:"category"`
		Threshold string `json:"threshold"`
	} `json:"safetySettings"`
}

func newServer(t *testing.T, respond string, capture *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/"+DefaultModel+":generateContent"), r.URL.Path)
		assert.Equal(t, "session-key", r.Header.Get("x-goog-api-key"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if capture != nil {
			require.NoError(t, json.Unmarshal(body, capture))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respond))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okResponse = `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"mood\":"},{"text":"\"calm\"}"}]}}]}`

func TestGeminiAnalyzer_Image(t *testing.T) {
	var got capturedRequest
	srv := newServer(t, okResponse, &got)
	a := NewGeminiAnalyzer("", "", srv.URL+"/")

	text, err := a.Analyze(context.Background(), vision.Request{
		APIKey:      "session-key",
		Instruction: "describe",
		Input:       vision.Input{ImageData: []byte("PNGDATA"), MimeType: "image/png"},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"mood":"calm"}`, text)

	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Role)
	require.Len(t, got.Contents[0].Parts, 2)
	assert.Equal(t, "describe", got.Contents[0].Parts[0].Text)
	require.NotNil(t, got.Contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", got.Contents[0].Parts[1].InlineData.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("PNGDATA")), got.Contents[0].Parts[1].InlineData.Data)

	assert.Len(t, got.SafetySettings, 4)
	for _, s := range got.SafetySettings {
		assert.Equal(t, "BLOCK_NONE", s.Threshold)
	}
}

func TestGeminiAnalyzer_TextInput(t *testing.T) {
	var got capturedRequest
	srv := newServer(t, okResponse, &got)
	a := NewGeminiAnalyzer("session-key", "", srv.URL+"/")

	_, err := a.Analyze(context.Background(), vision.Request{
		Instruction: "rewrite",
		Input:       vision.Input{Text: "a red fox in snow"},
	})

	require.NoError(t, err)
	require.Len(t, got.Contents[0].Parts, 2)
	assert.Equal(t, "a red fox in snow", got.Contents[0].Parts[1].Text)
	assert.Nil(t, got.Contents[0].Parts[1].InlineData)
}

func TestGeminiAnalyzer_EmptyCandidates(t *testing.T) {
	srv := newServer(t, `{"candidates":[]}`, nil)
	a := NewGeminiAnalyzer("session-key", "", srv.URL+"/")

	text, err := a.Analyze(context.Background(), vision.Request{Instruction: "x", Input: vision.Input{Text: "y"}})

	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestGeminiAnalyzer_BlankInstruction(t *testing.T) {
	a := NewGeminiAnalyzer("k", "", "http://unused/")

	_, err := a.Analyze(context.Background(), vision.Request{Instruction: "  "})

	assert.ErrorContains(t, err, "no system instruction")
}

func TestGeminiAnalyzer_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()
	a := NewGeminiAnalyzer("bad", "", srv.URL+"/")

	_, err := a.Analyze(context.Background(), vision.Request{Instruction: "x", Input: vision.Input{Text: "y"}})

	assert.ErrorContains(t, err, "failed to call gemini")
}
