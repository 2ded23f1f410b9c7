// Package wavespeed generates images through the Wavespeed text-to-image API.
package wavespeed

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/vbonduro/facet/internal/domain"
	"github.com/vbonduro/facet/internal/imagegen"
	"github.com/vbonduro/facet/internal/jsonval"
)

const DefaultURL = "https://api.wavespeed.ai/api/v3/google/nano-banana-pro/text-to-image"

type payload struct {
	Prompt             string `json:"prompt"`
	AspectRatio        string `json:"aspect_ratio"`
	Resolution         string `json:"resolution"`
	EnableSyncMode     bool   `json:"enable_sync_mode"`
	EnableBase64Output bool   `json:"enable_base64_output"`
	OutputFormat       string `json:"output_format"`
}

type Generator struct {
	url    string
	client *imagegen.Client
}

func New(url string, client *imagegen.Client) *Generator {
	if url == "" {
		url = DefaultURL
	}
	if client == nil {
		client = imagegen.NewClient()
	}
	return &Generator{url: url, client: client}
}

// resolution maps the session resolution onto the one this backend is asked
// for: 4k requests 2k, everything else 1k.
func resolution(r domain.Resolution) string {
	if r == domain.Resolution4K {
		return "2k"
	}
	return "1k"
}

func (g *Generator) Generate(ctx context.Context, req imagegen.Request) domain.GenerationResult {
	body, err := json.Marshal(payload{
		Prompt:             req.Prompt,
		AspectRatio:        req.AspectRatio,
		Resolution:         resolution(req.Resolution),
		EnableSyncMode:     true,
		EnableBase64Output: true,
		OutputFormat:       "png",
	})
	if err != nil {
		return imagegen.Failure("failed to marshal request: %v", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+req.APIKey)
	resp, err := g.client.PostJSON(ctx, g.url, header, body)
	if err != nil {
		return imagegen.Failure("%v", err)
	}
	if !resp.OK() {
		return imagegen.Failure("Wavespeed Error (%d): %s", resp.Status, resp.Body)
	}

	doc, err := jsonval.Parse(resp.Body)
	if err != nil {
		return imagegen.Failure("invalid Wavespeed response: %v", err)
	}
	return parseResponse(doc)
}

var dataURIHeader = regexp.MustCompile(`^data:image/\w+;base64,`)

// matcher inspects a response payload and reports whether it recognized it.
type matcher func(v *jsonval.Value) (domain.GenerationResult, bool)

// matchers are tried in order; the first hit wins.
var matchers = []matcher{
	matchBareString,
	matchField(false, "image_url"),
	matchField(true, "base64"),
	matchField(false, "url"),
	matchField(false, "output", "url"),
	matchField(true, "output", "base64"),
	matchFirstElement(true, "b64_json"),
	matchFirstElement(false, "url"),
}

func parseResponse(doc *jsonval.Value) domain.GenerationResult {
	result := doc
	if inner := doc.Get("data"); inner.Truthy() {
		result = inner
	}
	for _, m := range matchers {
		if res, ok := m(result); ok {
			return res
		}
	}
	return imagegen.Failure("Could not parse image data from Wavespeed response")
}

func matchBareString(v *jsonval.Value) (domain.GenerationResult, bool) {
	s, ok := v.Str()
	if !ok {
		return domain.GenerationResult{}, false
	}
	if strings.HasPrefix(s, "http") {
		return domain.GenerationResult{URL: s}, true
	}
	return domain.GenerationResult{B64JSON: dataURIHeader.ReplaceAllString(s, "")}, true
}

func matchField(b64 bool, path ...string) matcher {
	return func(v *jsonval.Value) (domain.GenerationResult, bool) {
		return found(v.Path(path...), b64)
	}
}

func matchFirstElement(b64 bool, key string) matcher {
	return func(v *jsonval.Value) (domain.GenerationResult, bool) {
		return found(v.Index(0).Get(key), b64)
	}
}

func found(v *jsonval.Value, b64 bool) (domain.GenerationResult, bool) {
	s, ok := v.Str()
	if !ok || s == "" {
		return domain.GenerationResult{}, false
	}
	if b64 {
		return domain.GenerationResult{B64JSON: s}, true
	}
	return domain.GenerationResult{URL: s}, true
}
