package export

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/facet/internal/datauri"
)

func newExporter(t *testing.T) *Exporter {
	t.Helper()
	e, err := New(nil, 0)
	require.NoError(t, err)
	return e
}

func TestSingle_DataURI(t *testing.T) {
	e := newExporter(t)

	data, mime, err := e.Single(context.Background(), datauri.Encode("image/png", []byte("PNG")))

	require.NoError(t, err)
	assert.Equal(t, []byte("PNG"), data)
	assert.Equal(t, "image/png", mime)
}

func TestSingle_InvalidDataURI(t *testing.T) {
	e := newExporter(t)

	_, _, err := e.Single(context.Background(), "data:image/png;base64,")

	assert.ErrorIs(t, err, datauri.ErrInvalid)
}

func TestSingle_RemoteIsCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("JPEG"))
	}))
	defer srv.Close()
	e := newExporter(t)

	for i := 0; i < 3; i++ {
		data, mime, err := e.Single(context.Background(), srv.URL+"/a.jpg")
		require.NoError(t, err)
		assert.Equal(t, []byte("JPEG"), data)
		assert.Equal(t, "image/jpeg", mime)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestSingle_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	e := newExporter(t)

	_, _, err := e.Single(context.Background(), srv.URL+"/missing.png")

	assert.ErrorContains(t, err, "status 404")
}

func TestSingle_RemoteTooLarge(t *testing.T) {
	old := maxImageBytes
	maxImageBytes = 8
	t.Cleanup(func() { maxImageBytes = old })

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		if r.URL.Path == "/exact.png" {
			_, _ = w.Write([]byte("12345678"))
			return
		}
		_, _ = w.Write([]byte("123456789"))
	}))
	defer srv.Close()
	e := newExporter(t)

	data, _, err := e.Single(context.Background(), srv.URL+"/exact.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("12345678"), data)

	for i := 0; i < 2; i++ {
		_, _, err = e.Single(context.Background(), srv.URL+"/big.png")
		assert.ErrorIs(t, err, ErrImageTooLarge)
	}
	assert.Equal(t, int32(3), hits.Load(), "oversized images are not cached")
}

func readZip(t *testing.T, b []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = string(data)
	}
	return out
}

func TestArchive_SkipsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.png" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		_, _ = w.Write([]byte("REMOTE"))
	}))
	defer srv.Close()
	e := newExporter(t)

	var buf bytes.Buffer
	n, err := e.Archive(context.Background(), &buf, []Image{
		{Ref: datauri.Encode("image/png", []byte("ONE")), Filename: "frame_1.png"},
		{Ref: srv.URL + "/bad.png", Filename: "frame_2.png"},
		{Ref: srv.URL + "/good.png", Filename: "../../frame_3.png"},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	files := readZip(t, buf.Bytes())
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"images/frame_1.png", "images/frame_3.png"}, names)
	assert.Equal(t, "ONE", files["images/frame_1.png"])
	assert.Equal(t, "REMOTE", files["images/frame_3.png"])
}

func TestArchive_NothingToExport(t *testing.T) {
	e := newExporter(t)

	var buf bytes.Buffer
	n, err := e.Archive(context.Background(), &buf, []Image{
		{Ref: "data:broken", Filename: "x.png"},
	})

	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.Zero(t, n)
	assert.Zero(t, buf.Len())
}

func TestArchive_Empty(t *testing.T) {
	e := newExporter(t)

	_, err := e.Archive(context.Background(), io.Discard, nil)

	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestEntryName(t *testing.T) {
	assert.Equal(t, "a.png", entryName("a.png", 0))
	assert.Equal(t, "b.png", entryName(`..\..\b.png`, 0))
	assert.Equal(t, "image_3.png", entryName("", 2))
	assert.Equal(t, "image_1.png", entryName("..", 0))
}
