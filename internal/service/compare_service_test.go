package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vbonduro/facet/internal/datauri"
	"github.com/vbonduro/facet/internal/domain"
	"github.com/vbonduro/facet/internal/export"
	"github.com/vbonduro/facet/internal/imagegen"
	"github.com/vbonduro/facet/internal/imagestore/local"
	"github.com/vbonduro/facet/internal/state"
	"github.com/vbonduro/facet/internal/vision"
)

// stubAnalyzer answers by instruction. An instruction of "hang" blocks until
// the context ends and "boom" panics.
type stubAnalyzer struct {
	mu       sync.Mutex
	requests []vision.Request
	reply    func(vision.Request) (string, error)
}

func (s *stubAnalyzer) Analyze(ctx context.Context, req vision.Request) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	switch req.Instruction {
	case "hang":
		<-ctx.Done()
		return "", ctx.Err()
	case "boom":
		panic("analyzer exploded")
	}
	if s.reply != nil {
		return s.reply(req)
	}
	return `{"style":"` + req.Instruction + `"}`, nil
}

func (s *stubAnalyzer) calls() []vision.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]vision.Request(nil), s.requests...)
}

type stubGenerator struct {
	mu       sync.Mutex
	requests []imagegen.Request
	result   domain.GenerationResult
}

func (s *stubGenerator) Generate(_ context.Context, req imagegen.Request) domain.GenerationResult {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.result
}

func (s *stubGenerator) calls() []imagegen.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]imagegen.Request(nil), s.requests...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testImage() string {
	return datauri.Encode("image/png", []byte("\x89PNG\r\n\x1a\nfake"))
}

// readySession has an API key, an input image and a prompt in every frame.
func readySession(t *testing.T, prompts ...string) *state.Session {
	t.Helper()
	sess := state.NewSession()
	sess.SetAPIKey("test-key")
	sess.SetInputImage(testImage())
	for i, p := range prompts {
		require.NoError(t, sess.SetPrompt(domain.FrameID(i+1), p))
	}
	return sess
}

func newTestService(sess *state.Session, analyzer vision.Analyzer, gen imageGenerator, opts ...Option) *CompareService {
	return NewCompareService(sess, analyzer, gen, nil, discardLogger(), opts...)
}

func TestAnalyze_OneTimeoutAmongFour(t *testing.T) {
	defer goleak.VerifyNone(t)

	sess := readySession(t, "painter", "hang", "critic", "poet")
	analyzer := &stubAnalyzer{}
	svc := newTestService(sess, analyzer, &stubGenerator{}, WithFrameTimeout(50*time.Millisecond))

	require.NoError(t, svc.Analyze(context.Background()))

	snap := sess.Snapshot()
	assert.False(t, snap.IsAnalyzing)

	statuses := map[domain.Status]int{}
	for _, id := range []domain.FrameID{1, 2, 3, 4} {
		f, _ := snap.Frame(id)
		statuses[f.Status]++
		require.NotNil(t, f.Content.Result)
		assert.True(t, f.IsFlipped)
	}
	assert.Equal(t, 3, statuses[domain.StatusSuccess])
	assert.Equal(t, 1, statuses[domain.StatusError])

	f2, _ := snap.Frame(2)
	assert.Equal(t, "{\n  \"error\": \"Request Timed Out\"\n}", *f2.Content.Result)

	f1, _ := snap.Frame(1)
	assert.Equal(t, "{\n  \"style\": \"painter\"\n}", *f1.Content.Result)
	assert.Len(t, analyzer.calls(), 4)
}

func TestAnalyze_SendsDecodedInputAndKey(t *testing.T) {
	sess := readySession(t, "painter")
	analyzer := &stubAnalyzer{}
	svc := newTestService(sess, analyzer, &stubGenerator{})

	require.NoError(t, svc.Analyze(context.Background()))

	calls := analyzer.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "test-key", calls[0].APIKey)
	assert.Equal(t, "painter", calls[0].Instruction)
	assert.Equal(t, "image/png", calls[0].Input.MimeType)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\nfake"), calls[0].Input.ImageData)
}

func TestAnalyze_TextInput(t *testing.T) {
	sess := state.NewSession()
	sess.SetAPIKey("test-key")
	sess.ToggleInputMode()
	sess.SetInputText("a quiet harbour at dawn")
	require.NoError(t, sess.SetPrompt(1, "painter"))

	analyzer := &stubAnalyzer{}
	svc := newTestService(sess, analyzer, &stubGenerator{})
	require.NoError(t, svc.Analyze(context.Background()))

	calls := analyzer.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "a quiet harbour at dawn", calls[0].Input.Text)
	assert.Nil(t, calls[0].Input.ImageData)
}

func TestAnalyze_Preconditions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) *state.Session
		want  error
	}{
		{
			name: "missing api key",
			setup: func(t *testing.T) *state.Session {
				sess := readySession(t, "painter")
				sess.ClearCredentials()
				return sess
			},
			want: ErrMissingAPIKey,
		},
		{
			name: "missing input image",
			setup: func(t *testing.T) *state.Session {
				sess := readySession(t, "painter")
				sess.ClearInputImage()
				return sess
			},
			want: ErrMissingInputImage,
		},
		{
			name: "no prompts",
			setup: func(t *testing.T) *state.Session {
				return readySession(t)
			},
			want: ErrNoPrompt,
		},
		{
			name: "whitespace prompts only",
			setup: func(t *testing.T) *state.Session {
				return readySession(t, "   ", "\n\t")
			},
			want: ErrNoPrompt,
		},
		{
			name: "prompt outside the active frames",
			setup: func(t *testing.T) *state.Session {
				sess := readySession(t, "", "", "painter")
				n := 2
				require.NoError(t, sess.ApplySettings(state.SettingsPatch{ActiveFrameCount: &n}))
				return sess
			},
			want: ErrNoPrompt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := tt.setup(t)
			before := sess.Snapshot()
			analyzer := &stubAnalyzer{}
			svc := newTestService(sess, analyzer, &stubGenerator{})

			err := svc.Analyze(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, before, sess.Snapshot())
			assert.Empty(t, analyzer.calls())
		})
	}
}

func TestAnalyze_BlankPromptFramesStayIdle(t *testing.T) {
	sess := readySession(t, "painter", "  ", "", "poet")
	svc := newTestService(sess, &stubAnalyzer{}, &stubGenerator{})

	require.NoError(t, svc.Analyze(context.Background()))

	snap := sess.Snapshot()
	for _, id := range []domain.FrameID{2, 3} {
		f, _ := snap.Frame(id)
		assert.Equal(t, domain.StatusIdle, f.Status, "frame %d", id)
		assert.False(t, f.IsFlipped)
		assert.Nil(t, f.Content.Result)
	}
}

func TestAnalyze_RejectsConcurrentRun(t *testing.T) {
	sess := readySession(t, "painter")
	require.NoError(t, sess.BeginAnalysis([]domain.FrameID{1}))

	svc := newTestService(sess, &stubAnalyzer{}, &stubGenerator{})
	assert.ErrorIs(t, svc.Analyze(context.Background()), state.ErrAnalysisRunning)
}

func TestAnalyze_PanicAndEmptyReplyBecomeFrameErrors(t *testing.T) {
	sess := readySession(t, "boom", "empty")
	analyzer := &stubAnalyzer{reply: func(vision.Request) (string, error) { return "  ", nil }}
	svc := newTestService(sess, analyzer, &stubGenerator{})

	require.NoError(t, svc.Analyze(context.Background()))

	snap := sess.Snapshot()
	f1, _ := snap.Frame(1)
	assert.Equal(t, domain.StatusError, f1.Status)
	assert.Contains(t, *f1.Content.Result, "analyzer exploded")

	f2, _ := snap.Frame(2)
	assert.Equal(t, domain.StatusError, f2.Status)
	assert.Contains(t, *f2.Content.Result, "No response from model")
}

func TestAnalyze_ModelErrorIsStored(t *testing.T) {
	sess := readySession(t, "painter")
	analyzer := &stubAnalyzer{reply: func(vision.Request) (string, error) {
		return "", errors.New("quota exceeded")
	}}
	svc := newTestService(sess, analyzer, &stubGenerator{})

	require.NoError(t, svc.Analyze(context.Background()))

	f, _ := sess.Snapshot().Frame(1)
	assert.Equal(t, domain.StatusError, f.Status)
	assert.Equal(t, "{\n  \"error\": \"quota exceeded\"\n}", *f.Content.Result)
}

func TestAnalyze_RecoversFencedJSON(t *testing.T) {
	sess := readySession(t, "painter")
	analyzer := &stubAnalyzer{reply: func(vision.Request) (string, error) {
		return "Here you go:\n```json\n{\"mood\": \"calm\"}\n```", nil
	}}
	svc := newTestService(sess, analyzer, &stubGenerator{})

	require.NoError(t, svc.Analyze(context.Background()))

	f, _ := sess.Snapshot().Frame(1)
	assert.Equal(t, domain.StatusSuccess, f.Status)
	assert.Equal(t, "{\n  \"mood\": \"calm\"\n}", *f.Content.Result)
}

func TestAnalyze_ImageModeGeneratesAndStores(t *testing.T) {
	defer goleak.VerifyNone(t)

	sess := readySession(t, "painter", "critic")
	mode := domain.GenerationImage
	require.NoError(t, sess.ApplySettings(state.SettingsPatch{GenerationMode: &mode}))

	stg, err := local.NewLocalImageStore(t.TempDir())
	require.NoError(t, err)
	gen := &stubGenerator{result: domain.GenerationResult{B64JSON: "aGVsbG8="}}
	analyzer := &stubAnalyzer{reply: func(req vision.Request) (string, error) {
		return `{"raw_output":"draw a ` + req.Instruction + `"}`, nil
	}}
	svc := newTestService(sess, analyzer, gen, WithImageStore(stg))

	require.NoError(t, svc.Analyze(context.Background()))
	svc.WaitForImages()

	snap := sess.Snapshot()
	for _, id := range []domain.FrameID{1, 2} {
		f, _ := snap.Frame(id)
		assert.Equal(t, domain.StatusSuccess, f.Status)
		assert.Equal(t, "data:image/png;base64,aGVsbG8=", f.Content.OutputImage)
		assert.NotEmpty(t, f.Content.OutputKey)
		assert.Empty(t, f.Content.ImageError)
	}

	prompts := []string{}
	for _, r := range gen.calls() {
		prompts = append(prompts, r.Prompt)
		assert.Equal(t, "test-key", r.APIKey)
		assert.Equal(t, domain.ProviderGoogle, r.Provider)
		assert.Equal(t, "9:16", r.AspectRatio)
	}
	assert.ElementsMatch(t, []string{"draw a painter", "draw a critic"}, prompts)

	data, _, name, err := svc.FrameImage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	assert.Equal(t, "frame_1.png", name)
}

func TestAnalyze_ImageFailureKeepsAnalysis(t *testing.T) {
	sess := readySession(t, "painter")
	mode := domain.GenerationImage
	require.NoError(t, sess.ApplySettings(state.SettingsPatch{GenerationMode: &mode}))

	gen := &stubGenerator{result: imagegen.Failure("Google Error (500): %s", "down")}
	svc := newTestService(sess, &stubAnalyzer{}, gen)

	require.NoError(t, svc.Analyze(context.Background()))
	svc.WaitForImages()

	f, _ := sess.Snapshot().Frame(1)
	assert.Equal(t, domain.StatusSuccess, f.Status)
	assert.Equal(t, "Google Error (500): down", f.Content.ImageError)
	assert.Empty(t, f.Content.OutputImage)
	require.NotNil(t, f.Content.Result)
}

func TestGenerateImage_ProviderKey(t *testing.T) {
	sess := readySession(t, "painter")
	gen := &stubGenerator{result: domain.GenerationResult{URL: "https://img.example/1.png"}}
	svc := newTestService(sess, &stubAnalyzer{}, gen)
	require.NoError(t, svc.Analyze(context.Background()))

	provider := domain.ProviderWavespeed
	require.NoError(t, sess.ApplySettings(state.SettingsPatch{ImageProvider: &provider}))

	before := sess.Snapshot()
	assert.ErrorIs(t, svc.GenerateImage(context.Background(), 1), ErrMissingAPIKey)
	assert.Equal(t, before, sess.Snapshot())

	sess.SetWavespeedKey("ws-key")
	require.NoError(t, svc.GenerateImage(context.Background(), 1))

	calls := gen.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ws-key", calls[0].APIKey)
	assert.Equal(t, domain.ProviderWavespeed, calls[0].Provider)

	f, _ := sess.Snapshot().Frame(1)
	assert.Equal(t, "https://img.example/1.png", f.Content.OutputImage)
	assert.Empty(t, f.Content.OutputKey)
}

func TestGenerateImage_Errors(t *testing.T) {
	sess := readySession(t, "painter")
	svc := newTestService(sess, &stubAnalyzer{}, &stubGenerator{})

	assert.ErrorIs(t, svc.GenerateImage(context.Background(), 1), ErrNoResult)
	assert.ErrorIs(t, svc.GenerateImage(context.Background(), 0), state.ErrUnknownFrame)
	assert.ErrorIs(t, svc.GenerateImage(context.Background(), 9), state.ErrUnknownFrame)
}

func TestExportArchive(t *testing.T) {
	sess := readySession(t, "painter", "critic")
	mode := domain.GenerationImage
	require.NoError(t, sess.ApplySettings(state.SettingsPatch{GenerationMode: &mode}))

	exp, err := export.New(nil, 0)
	require.NoError(t, err)
	gen := &stubGenerator{result: domain.GenerationResult{B64JSON: "aGVsbG8="}}
	svc := newTestService(sess, &stubAnalyzer{}, gen, WithExporter(exp))

	var empty bytes.Buffer
	_, err = svc.ExportArchive(context.Background(), &empty)
	assert.ErrorIs(t, err, export.ErrNothingToExport)
	assert.Zero(t, empty.Len())

	require.NoError(t, svc.Analyze(context.Background()))
	svc.WaitForImages()

	var buf bytes.Buffer
	n, err := svc.ExportArchive(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"images/frame_1.png", "images/frame_2.png"}, names)

	data, mimeType, name, err := svc.FrameImage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, "frame_2.png", name)

	_, _, _, err = svc.FrameImage(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestParagraphAndCopyText(t *testing.T) {
	sess := readySession(t, "painter")
	analyzer := &stubAnalyzer{reply: func(vision.Request) (string, error) {
		return `{"raw_output":"a misty valley"}`, nil
	}}
	svc := newTestService(sess, analyzer, &stubGenerator{})

	_, err := svc.CopyText(1)
	assert.ErrorIs(t, err, ErrNoResult)

	require.NoError(t, svc.Analyze(context.Background()))

	text, err := svc.CopyText(1)
	require.NoError(t, err)
	assert.Equal(t, "a misty valley", text)

	para, err := svc.Paragraph(1, 0)
	require.NoError(t, err)
	assert.True(t, strings.Contains(para, "misty valley"))
}
