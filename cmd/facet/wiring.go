package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vbonduro/facet/internal/config"
	"github.com/vbonduro/facet/internal/db"
	"github.com/vbonduro/facet/internal/domain"
	"github.com/vbonduro/facet/internal/export"
	"github.com/vbonduro/facet/internal/imagegen"
	"github.com/vbonduro/facet/internal/imagegen/google"
	"github.com/vbonduro/facet/internal/imagegen/wavespeed"
	"github.com/vbonduro/facet/internal/imagestore"
	"github.com/vbonduro/facet/internal/imagestore/local"
	"github.com/vbonduro/facet/internal/imagestore/s3"
	"github.com/vbonduro/facet/internal/service"
	"github.com/vbonduro/facet/internal/state"
	"github.com/vbonduro/facet/internal/store"
	"github.com/vbonduro/facet/internal/vision"
	claudevision "github.com/vbonduro/facet/internal/vision/claude"
	geminivision "github.com/vbonduro/facet/internal/vision/gemini"
	ollamavision "github.com/vbonduro/facet/internal/vision/ollama"
)

// ollamaSessionKey marks the session as keyed when the backend needs none.
const ollamaSessionKey = "ollama"

type library interface {
	Add(ctx context.Context, typ domain.LibraryItemType, name, content string) (*domain.LibraryItem, error)
	GetByID(ctx context.Context, id string) (*domain.LibraryItem, error)
	List(ctx context.Context) ([]*domain.LibraryItem, error)
	Delete(ctx context.Context, id string) error
}

// app is a fully wired comparison service and the resources behind it.
type app struct {
	svc     *service.CompareService
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	lib, closeLib, err := newLibrary(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeLib)

	analyzer, sessionKey, err := newVisionAnalyzer(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	imageStg, err := newImageStore(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	exp, err := export.New(nil, export.DefaultCacheSize)
	if err != nil {
		a.Close()
		return nil, err
	}

	client := imagegen.NewClient()
	dispatcher := imagegen.NewDispatcher(
		wavespeed.New(cfg.WavespeedURL, client),
		google.New(cfg.GoogleImageURL, cfg.GoogleImageModel, client),
	)

	sess := state.NewSession()
	if sessionKey != "" {
		sess.SetAPIKey(sessionKey)
	}
	if cfg.WavespeedAPIKey != "" {
		sess.SetWavespeedKey(cfg.WavespeedAPIKey)
	}

	a.svc = service.NewCompareService(sess, analyzer, dispatcher, lib, logger,
		service.WithImageStore(imageStg),
		service.WithExporter(exp),
		service.WithFrameTimeout(cfg.FrameTimeout),
	)
	return a, nil
}

func newLibrary(ctx context.Context, cfg *config.Config, logger *slog.Logger) (library, func(), error) {
	switch cfg.LibraryBackend {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("DATABASE_URL is required when LIBRARY_BACKEND=postgres")
		}
		pg, err := store.NewPostgresLibraryStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using Postgres library")
		return pg, pg.Close, nil
	case "sqlite", "":
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		logger.Info("using SQLite library", "path", cfg.DBPath)
		return store.NewLibraryStore(database), func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown LIBRARY_BACKEND %q", cfg.LibraryBackend)
	}
}

// newVisionAnalyzer also returns the key the session starts with.
func newVisionAnalyzer(cfg *config.Config, logger *slog.Logger) (vision.Analyzer, string, error) {
	switch cfg.VisionBackend {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			return nil, "", errors.New("CLAUDE_API_KEY is required when VISION_BACKEND=claude")
		}
		logger.Info("using Claude vision backend", "model", cfg.ClaudeModel)
		return claudevision.NewClaudeAnalyzer(cfg.ClaudeAPIKey, cfg.ClaudeModel), cfg.ClaudeAPIKey, nil
	case "ollama":
		logger.Info("using Ollama vision backend", "model", cfg.OllamaModel)
		return ollamavision.NewOllamaAnalyzer(cfg.OllamaHost, cfg.OllamaModel), ollamaSessionKey, nil
	case "gemini", "":
		logger.Info("using Gemini vision backend", "model", cfg.GeminiModel)
		return geminivision.NewGeminiAnalyzer(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL), cfg.GeminiAPIKey, nil
	default:
		return nil, "", fmt.Errorf("unknown VISION_BACKEND %q", cfg.VisionBackend)
	}
}

func newImageStore(cfg *config.Config, logger *slog.Logger) (imagestore.ImageStore, error) {
	switch cfg.ImageBackend {
	case "s3":
		stg, err := s3.NewS3ImageStore(s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 image store: %w", err)
		}
		logger.Info("using S3 image store", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
		return stg, nil
	case "local", "":
		stg, err := local.NewLocalImageStore(cfg.ImageLocalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize image store: %w", err)
		}
		return stg, nil
	default:
		return nil, fmt.Errorf("unknown IMAGE_BACKEND %q", cfg.ImageBackend)
	}
}
