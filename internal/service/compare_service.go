package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/facet/internal/datauri"
	"github.com/vbonduro/facet/internal/domain"
	"github.com/vbonduro/facet/internal/export"
	"github.com/vbonduro/facet/internal/imagegen"
	"github.com/vbonduro/facet/internal/imagestore"
	"github.com/vbonduro/facet/internal/jsonval"
	"github.com/vbonduro/facet/internal/state"
	"github.com/vbonduro/facet/internal/vision"
)

// Precondition failures. Each is returned before any state changes.
var (
	ErrMissingAPIKey     = errors.New("no API key set")
	ErrMissingInputImage = errors.New("no input image: upload an image to the input frame first")
	ErrNoPrompt          = errors.New("no prompt: fill in at least one comparison frame")
	ErrNoResult          = errors.New("frame has no result yet")
	ErrNoImage           = errors.New("frame has no generated image")
)

// DefaultFrameTimeout bounds one frame's analysis.
const DefaultFrameTimeout = 60 * time.Second

const (
	msgTimedOut   = "Request Timed Out"
	msgNoResponse = "No response from model"
)

// imageGenerator is satisfied by imagegen.Dispatcher.
type imageGenerator interface {
	Generate(ctx context.Context, req imagegen.Request) domain.GenerationResult
}

// CompareService runs one instruction per output frame against the input
// frame, concurrently, and records the results on the session.
type CompareService struct {
	session      *state.Session
	analyzer     vision.Analyzer
	images       imageGenerator
	library      libraryRepository
	imageStg     imagestore.ImageStore
	exporter     *export.Exporter
	logger       *slog.Logger
	frameTimeout time.Duration

	imageWG sync.WaitGroup
}

type Option func(*CompareService)

// WithImageStore persists generated images so they can be downloaded later.
func WithImageStore(stg imagestore.ImageStore) Option {
	return func(s *CompareService) { s.imageStg = stg }
}

func WithExporter(e *export.Exporter) Option {
	return func(s *CompareService) { s.exporter = e }
}

func WithFrameTimeout(d time.Duration) Option {
	return func(s *CompareService) { s.frameTimeout = d }
}

func NewCompareService(
	session *state.Session,
	analyzer vision.Analyzer,
	images imageGenerator,
	library libraryRepository,
	logger *slog.Logger,
	opts ...Option,
) *CompareService {
	s := &CompareService{
		session:      session,
		analyzer:     analyzer,
		images:       images,
		library:      library,
		logger:       logger,
		frameTimeout: DefaultFrameTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CompareService) Session() *state.Session {
	return s.session
}

// job is one frame's share of an analysis run.
type job struct {
	id          domain.FrameID
	instruction string
}

// Analyze validates the session, then analyzes every eligible output frame
// concurrently and applies all outcomes in one transition. In image mode it
// starts image generation for each successful frame and returns without
// waiting for it; see WaitForImages.
func (s *CompareService) Analyze(ctx context.Context) (err error) {
	snap := s.session.Snapshot()
	creds := s.session.Credentials()

	if creds.APIKey == "" {
		return ErrMissingAPIKey
	}
	inputFrame := snap.Frames[domain.InputFrame]
	if inputFrame.Mode == domain.ModeImage && inputFrame.Content.InputImage == "" {
		return ErrMissingInputImage
	}

	jobs := eligibleJobs(snap)
	if len(jobs) == 0 {
		return ErrNoPrompt
	}

	ids := make([]domain.FrameID, len(jobs))
	for i, j := range jobs {
		ids[i] = j.id
	}
	if err := s.session.BeginAnalysis(ids); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("analysis run panicked", "panic", r)
			s.session.AbortAnalysis()
			err = fmt.Errorf("analysis failed: %v", r)
		}
	}()

	// The run outlives a cancelled request: in-flight analyses are never
	// cancelled once started.
	runCtx := context.WithoutCancel(ctx)
	input, inputErr := buildInput(inputFrame)

	s.logger.Info("analysis started", "frames", len(jobs), "input_mode", inputFrame.Mode)
	start := time.Now()

	outcomes := make([]state.Outcome, len(jobs))
	var g errgroup.Group
	for i, j := range jobs {
		g.Go(func() error {
			if inputErr != nil {
				outcomes[i] = failure(j.id, inputErr.Error())
				return nil
			}
			outcomes[i] = s.analyzeFrame(runCtx, j, creds.APIKey, input)
			return nil
		})
	}
	_ = g.Wait()

	pending := s.session.ApplyAnalysisBatch(outcomes)
	s.logger.Info("analysis complete", "frames", len(jobs), "duration_ms", time.Since(start).Milliseconds())

	for _, id := range pending {
		s.imageWG.Add(1)
		go func() {
			defer s.imageWG.Done()
			s.generateForFrame(runCtx, id)
		}()
	}
	return nil
}

// WaitForImages blocks until every image generation started by Analyze has
// finished.
func (s *CompareService) WaitForImages() {
	s.imageWG.Wait()
}

// eligibleJobs lists the active output frames whose prompt has text.
func eligibleJobs(snap state.Snapshot) []job {
	var jobs []job
	for id := domain.FrameID(1); int(id) <= snap.Settings.ActiveFrameCount; id++ {
		f, ok := snap.Frame(id)
		if !ok {
			break
		}
		if strings.TrimSpace(f.Content.Prompt) == "" {
			continue
		}
		jobs = append(jobs, job{id: id, instruction: f.Content.Prompt})
	}
	return jobs
}

// buildInput decodes the input frame once for every analysis in a run.
func buildInput(f domain.Frame) (vision.Input, error) {
	if f.Mode == domain.ModeText {
		return vision.Input{Text: f.Content.InputText}, nil
	}
	mimeType, data, err := datauri.Decode(f.Content.InputImage)
	if err != nil {
		return vision.Input{}, err
	}
	return vision.Input{ImageData: data, MimeType: mimeType}, nil
}

type analyzeResult struct {
	text string
	err  error
}

// analyzeFrame runs one frame's analysis under the frame timeout. It never
// panics and never returns an error: every failure is an outcome.
func (s *CompareService) analyzeFrame(ctx context.Context, j job, apiKey string, input vision.Input) (out state.Outcome) {
	logger := s.logger.With("frame_id", j.id)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("frame analysis panicked", "panic", r)
			out = failure(j.id, fmt.Sprint(r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.frameTimeout)
	defer cancel()

	done := make(chan analyzeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- analyzeResult{err: fmt.Errorf("%v", r)}
			}
		}()
		text, err := s.analyzer.Analyze(ctx, vision.Request{
			APIKey:      apiKey,
			Instruction: j.instruction,
			Input:       input,
		})
		done <- analyzeResult{text: text, err: err}
	}()

	var res analyzeResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = analyzeResult{err: ctx.Err()}
	}

	if res.err != nil {
		msg := res.err.Error()
		if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = msgTimedOut
		}
		logger.Warn("frame analysis failed", "error", msg)
		return failure(j.id, msg)
	}
	if strings.TrimSpace(res.text) == "" {
		logger.Warn("frame analysis failed", "error", msgNoResponse)
		return failure(j.id, msgNoResponse)
	}

	data, err := vision.Recover(res.text).Indent()
	if err != nil {
		return failure(j.id, err.Error())
	}
	logger.Debug("frame analysis succeeded", "bytes", len(data))
	return state.Outcome{ID: j.id, Success: true, Result: data}
}

// failure builds the stored error document {"error": msg}.
func failure(id domain.FrameID, msg string) state.Outcome {
	doc := jsonval.NewObject(jsonval.Member{Key: "error", Value: jsonval.NewString(msg)})
	text, err := doc.Indent()
	if err != nil {
		text = doc.String()
	}
	return state.Outcome{ID: id, Success: false, Result: text}
}

// GenerateImage (re)generates the image for one frame from its result. It
// returns once the frame's image state is final.
func (s *CompareService) GenerateImage(ctx context.Context, id domain.FrameID) error {
	snap := s.session.Snapshot()
	f, ok := snap.Frame(id)
	if !ok || !id.IsOutput() {
		return fmt.Errorf("%w: %d", state.ErrUnknownFrame, id)
	}
	if f.Content.Result == nil {
		return ErrNoResult
	}
	if imageKey(snap.Settings, s.session.Credentials()) == "" {
		return ErrMissingAPIKey
	}
	if err := s.session.BeginImage(id); err != nil {
		return err
	}
	s.generateForFrame(ctx, id)
	return nil
}

// imageKey picks the credential for the configured image provider.
func imageKey(settings state.Settings, creds state.Credentials) string {
	if settings.ImageProvider == domain.ProviderWavespeed {
		return creds.WavespeedKey
	}
	return creds.APIKey
}

// generateForFrame does the generation and records the outcome. The analysis
// already succeeded, so a failure only sets the frame's image error.
func (s *CompareService) generateForFrame(ctx context.Context, id domain.FrameID) {
	logger := s.logger.With("frame_id", id)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("image generation panicked", "panic", r)
			_ = s.session.FailImage(id, fmt.Sprint(r))
		}
	}()

	snap := s.session.Snapshot()
	f, _ := snap.Frame(id)
	if f.Content.Result == nil {
		_ = s.session.FailImage(id, ErrNoResult.Error())
		return
	}
	key := imageKey(snap.Settings, s.session.Credentials())
	if key == "" {
		_ = s.session.FailImage(id, ErrMissingAPIKey.Error())
		return
	}

	res := s.images.Generate(ctx, imagegen.Request{
		Provider:    snap.Settings.ImageProvider,
		APIKey:      key,
		Prompt:      PromptText(*f.Content.Result),
		AspectRatio: snap.Settings.AspectRatio,
		Resolution:  snap.Settings.Resolution,
	})
	if res.Error != "" {
		logger.Warn("image generation failed", "provider", snap.Settings.ImageProvider, "error", res.Error)
		_ = s.session.FailImage(id, res.Error)
		return
	}

	storageKey := s.persist(ctx, id, res)
	_ = s.session.CompleteImage(id, res.ImageRef(), storageKey)
	logger.Info("image generated", "provider", snap.Settings.ImageProvider, "storage_key", storageKey)
}

// persist saves an inline image to the image store. Remote URLs are left
// where they are. A failed save is logged; the image is still shown.
func (s *CompareService) persist(ctx context.Context, id domain.FrameID, res domain.GenerationResult) string {
	if s.imageStg == nil || res.B64JSON == "" {
		return ""
	}
	data, err := base64.StdEncoding.DecodeString(res.B64JSON)
	if err != nil {
		s.logger.Warn("generated image is not valid base64", "frame_id", id, "error", err)
		return ""
	}
	key, err := s.imageStg.Save(ctx, fmt.Sprintf("frame_%d", id), "image/png", bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("failed to store generated image", "frame_id", id, "error", err)
		return ""
	}
	return key
}
