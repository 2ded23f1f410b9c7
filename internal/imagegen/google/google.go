// Package google generates images through the Gemini generateContent API.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/vbonduro/facet/internal/domain"
	"github.com/vbonduro/facet/internal/imagegen"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-3-pro-image-preview"
)

const ultraHDPrefix = "4K Ultra HD, Highly Detailed, "

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type imageConfig struct {
	ImageSize   string `json:"imageSize"`
	AspectRatio string `json:"aspectRatio"`
}

type generationConfig struct {
	CandidateCount int         `json:"candidateCount"`
	ImageConfig    imageConfig `json:"imageConfig"`
}

type request struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type inlineData struct {
	Data string `json:"data"`
}

type response struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				InlineData      *inlineData `json:"inlineData"`
				InlineDataSnake *inlineData `json:"inline_data"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

type Generator struct {
	baseURL string
	model   string
	client  *imagegen.Client
}

func New(baseURL, model string, client *imagegen.Client) *Generator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if client == nil {
		client = imagegen.NewClient()
	}
	return &Generator{baseURL: baseURL, model: model, client: client}
}

func (g *Generator) endpoint(apiKey string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.baseURL, g.model, url.QueryEscape(apiKey))
}

func buildRequest(req imagegen.Request) request {
	prompt, size := req.Prompt, "2K"
	if req.Resolution == domain.Resolution4K {
		prompt, size = ultraHDPrefix+req.Prompt, "4K"
	}
	return request{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			CandidateCount: 1,
			ImageConfig:    imageConfig{ImageSize: size, AspectRatio: req.AspectRatio},
		},
	}
}

func (g *Generator) Generate(ctx context.Context, req imagegen.Request) domain.GenerationResult {
	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return imagegen.Failure("failed to marshal request: %v", err)
	}

	resp, err := g.client.PostJSON(ctx, g.endpoint(req.APIKey), nil, body)
	if err != nil {
		return imagegen.Failure("%v", err)
	}
	if !resp.OK() {
		return imagegen.Failure("Google Error (%d): %s", resp.Status, resp.Body)
	}

	var parsed response
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return imagegen.Failure("invalid Google response: %v", err)
	}
	return extract(parsed)
}

func extract(resp response) domain.GenerationResult {
	if len(resp.Candidates) == 0 {
		return imagegen.Failure("Invalid Google response structure")
	}
	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return domain.GenerationResult{B64JSON: p.InlineData.Data}
			}
			if p.InlineDataSnake != nil && p.InlineDataSnake.Data != "" {
				return domain.GenerationResult{B64JSON: p.InlineDataSnake.Data}
			}
		}
	}
	if cand.FinishReason != "" {
		return imagegen.Failure("Generation Blocked: %s", cand.FinishReason)
	}
	return imagegen.Failure("Invalid Google response structure")
}
