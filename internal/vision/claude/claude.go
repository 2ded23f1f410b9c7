package claude

import (
	"context"
	"encoding/base64"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/facet/internal/vision"
)

const defaultAPIURL = "https://api.anthropic.com/v1"

// maxTokens leaves room for the full structured description schema, which
// runs to roughly 1500 tokens when every field is filled.
const maxTokens = 4096

type ClaudeAnalyzer struct {
	apiKey  string
	model   string
	baseURL string
}

func NewClaudeAnalyzer(apiKey, model string) *ClaudeAnalyzer {
	return &ClaudeAnalyzer{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultAPIURL,
	}
}

// buildMessages puts the input first and the instruction last, the order the
// Messages API recommends for image prompts.
func buildMessages(req vision.Request) []anthropic.Message {
	var content []anthropic.MessageContent
	if len(req.Input.ImageData) > 0 {
		content = append(content, anthropic.NewImageMessageContent(
			anthropic.NewMessageContentSource(
				anthropic.MessagesContentSourceTypeBase64,
				normaliseMIME(req.Input.MimeType),
				base64.StdEncoding.EncodeToString(req.Input.ImageData),
			),
		))
	} else {
		content = append(content, anthropic.NewTextMessageContent(req.Input.Text))
	}
	content = append(content, anthropic.NewTextMessageContent(req.Instruction))
	return []anthropic.Message{{Role: anthropic.RoleUser, Content: content}}
}

func (a *ClaudeAnalyzer) Analyze(ctx context.Context, req vision.Request) (string, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = a.apiKey
	}
	client := anthropic.NewClient(apiKey, anthropic.WithBaseURL(a.baseURL))

	resp, err := client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages:  buildMessages(req),
	})
	if err != nil {
		return "", fmt.Errorf("failed to call claude: %w", err)
	}
	return resp.GetFirstContentText(), nil
}

// normaliseMIME maps browser MIME types to the values the Anthropic API accepts.
// The Anthropic API accepts only jpeg, png, gif, and webp. Unknown types are
// coerced to jpeg as the most universally supported lossy fallback. Callers
// should validate MIME types before reaching this layer.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
