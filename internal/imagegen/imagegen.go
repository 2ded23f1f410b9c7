// Package imagegen turns a text prompt into an image through one of the
// supported generation backends. Every outcome, including transport failures
// and malformed responses, is reported as a domain.GenerationResult.
package imagegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vbonduro/facet/internal/domain"
)

// DefaultTimeout bounds one backend call.
const DefaultTimeout = 60 * time.Second

// StatusTimedOut is reported in place of an HTTP status when the call never
// produced a response.
const StatusTimedOut = http.StatusRequestTimeout

type Request struct {
	Provider    domain.Provider
	APIKey      string
	Prompt      string
	AspectRatio string
	Resolution  domain.Resolution
}

// Backend generates one image. Implementations never return an error; a
// failure is a result with Error set.
type Backend interface {
	Generate(ctx context.Context, req Request) domain.GenerationResult
}

// Failure builds an error result.
func Failure(format string, args ...any) domain.GenerationResult {
	return domain.GenerationResult{Error: fmt.Sprintf(format, args...)}
}

// Dispatcher routes a request to the wavespeed backend when the provider says
// so and to the google backend otherwise.
type Dispatcher struct {
	wavespeed Backend
	google    Backend
}

func NewDispatcher(wavespeed, google Backend) *Dispatcher {
	return &Dispatcher{wavespeed: wavespeed, google: google}
}

func (d *Dispatcher) Generate(ctx context.Context, req Request) (res domain.GenerationResult) {
	backend := d.google
	if req.Provider == domain.ProviderWavespeed {
		backend = d.wavespeed
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("image backend panicked", "provider", req.Provider, "panic", r)
			res = Failure("%v", r)
		}
	}()

	start := time.Now()
	res = backend.Generate(ctx, req)
	if res.Error != "" {
		slog.Warn("image generation failed", "provider", req.Provider, "error", res.Error,
			"duration_ms", time.Since(start).Milliseconds())
	} else {
		slog.Info("image generated", "provider", req.Provider,
			"duration_ms", time.Since(start).Milliseconds())
	}
	return res
}

// Client posts JSON to a backend under a fixed per-call timeout.
type Client struct {
	HTTP    *http.Client
	Timeout time.Duration
}

func NewClient() *Client {
	return &Client{HTTP: &http.Client{}, Timeout: DefaultTimeout}
}

// Response is what came back from a backend. When the request never
// completed, Status is StatusTimedOut and Body carries the reason.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// PostJSON sends payload to url with the given extra headers. It returns an
// error only when the request cannot be built; transport failures and
// timeouts become a StatusTimedOut response.
func (c *Client) PostJSON(ctx context.Context, url string, header http.Header, payload []byte) (Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return timedOut(ctx, err), nil
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close image backend response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return timedOut(ctx, err), nil
	}
	return Response{Status: resp.StatusCode, Body: body}, nil
}

func timedOut(ctx context.Context, err error) Response {
	msg := err.Error()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		msg = "Request Timed Out"
	}
	return Response{Status: StatusTimedOut, Body: []byte(msg)}
}
