package imagegen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/facet/internal/domain"
)

type recordingBackend struct {
	name  string
	calls []Request
}

func (b *recordingBackend) Generate(_ context.Context, req Request) domain.GenerationResult {
	b.calls = append(b.calls, req)
	return domain.GenerationResult{URL: "https://img/" + b.name}
}

type panickingBackend struct{}

func (panickingBackend) Generate(context.Context, Request) domain.GenerationResult {
	panic("boom")
}

func TestDispatcher_RoutesByProvider(t *testing.T) {
	ws := &recordingBackend{name: "ws"}
	g := &recordingBackend{name: "g"}
	d := NewDispatcher(ws, g)

	res := d.Generate(context.Background(), Request{Provider: domain.ProviderWavespeed, Prompt: "p"})
	assert.Equal(t, "https://img/ws", res.URL)

	res = d.Generate(context.Background(), Request{Provider: domain.ProviderGoogle})
	assert.Equal(t, "https://img/g", res.URL)

	res = d.Generate(context.Background(), Request{Provider: "something-else"})
	assert.Equal(t, "https://img/g", res.URL)

	assert.Len(t, ws.calls, 1)
	assert.Len(t, g.calls, 2)
	assert.Equal(t, "p", ws.calls[0].Prompt)
}

func TestDispatcher_RecoversPanic(t *testing.T) {
	d := NewDispatcher(panickingBackend{}, panickingBackend{})

	res := d.Generate(context.Background(), Request{})

	assert.Equal(t, "boom", res.Error)
	assert.Empty(t, res.URL)
	assert.Empty(t, res.B64JSON)
}

func TestClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	c := NewClient()
	resp, err := c.PostJSON(context.Background(), srv.URL, http.Header{"Authorization": {"Bearer k"}}, []byte(`{}`))

	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.Status)
	assert.Equal(t, "short and stout", string(resp.Body))
	assert.False(t, resp.OK())
}

func TestClient_TimeoutBecomes408(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := &Client{HTTP: &http.Client{}, Timeout: 50 * time.Millisecond}
	resp, err := c.PostJSON(context.Background(), srv.URL, nil, []byte(`{}`))

	require.NoError(t, err)
	assert.Equal(t, StatusTimedOut, resp.Status)
	assert.Equal(t, "Request Timed Out", string(resp.Body))
}

func TestClient_TransportErrorBecomes408(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	resp, err := NewClient().PostJSON(context.Background(), url, nil, []byte(`{}`))

	require.NoError(t, err)
	assert.Equal(t, StatusTimedOut, resp.Status)
	assert.NotEmpty(t, resp.Body)
	assert.NotEqual(t, "Request Timed Out", string(resp.Body))
}
