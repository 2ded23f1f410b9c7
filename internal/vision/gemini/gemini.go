package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/vbonduro/facet/internal/vision"
)

const DefaultModel = "gemini-2.0-flash"

// blockNone disables the API's content filters. Analyses describe bodies and
// poses in detail and are otherwise refused.
var blockNone = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
}

type GeminiAnalyzer struct {
	apiKey  string
	model   string
	baseURL string
}

// NewGeminiAnalyzer returns an analyzer for model. apiKey is used when a
// request carries no key of its own. baseURL overrides the API endpoint and
// may be empty.
func NewGeminiAnalyzer(apiKey, model, baseURL string) *GeminiAnalyzer {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiAnalyzer{apiKey: apiKey, model: model, baseURL: baseURL}
}

// buildParts lays out the instruction first, then the input image or text.
func buildParts(req vision.Request) []*genai.Part {
	parts := []*genai.Part{genai.NewPartFromText(req.Instruction)}
	if len(req.Input.ImageData) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Input.ImageData, req.Input.MimeType))
	} else {
		parts = append(parts, genai.NewPartFromText(req.Input.Text))
	}
	return parts
}

func (a *GeminiAnalyzer) Analyze(ctx context.Context, req vision.Request) (string, error) {
	if strings.TrimSpace(req.Instruction) == "" {
		return "", errors.New("no system instruction provided")
	}
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = a.apiKey
	}

	// A client per call: the key belongs to the session and may change
	// between analyses.
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: a.baseURL},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", err)
	}

	resp, err := cli.Models.GenerateContent(ctx, a.model,
		[]*genai.Content{genai.NewContentFromParts(buildParts(req), genai.RoleUser)},
		&genai.GenerateContentConfig{SafetySettings: blockNone},
	)
	if err != nil {
		return "", fmt.Errorf("failed to call gemini: %w", err)
	}
	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
