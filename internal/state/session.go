// Package state holds the single comparison session: five frames, the
// session settings, and the credentials entered for this process. Every
// change goes through a named transition on Session.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vbonduro/facet/internal/domain"
)

var (
	ErrUnknownFrame    = errors.New("unknown frame")
	ErrNotOutputFrame  = errors.New("frame is not an output frame")
	ErrInvalidSettings = errors.New("invalid settings")
)

// AspectRatios are the supported output aspect ratios.
var AspectRatios = []string{"16:9", "9:16", "1:1", "4:3"}

type Settings struct {
	GenerationMode   domain.GenerationMode `json:"generation_mode"`
	ImageProvider    domain.Provider       `json:"image_provider"`
	AspectRatio      string                `json:"aspect_ratio"`
	Resolution       domain.Resolution     `json:"resolution"`
	ActiveFrameCount int                   `json:"active_frame_count"`
}

func DefaultSettings() Settings {
	return Settings{
		GenerationMode:   domain.GenerationPrompt,
		ImageProvider:    domain.ProviderGoogle,
		AspectRatio:      "9:16",
		Resolution:       domain.Resolution2K,
		ActiveFrameCount: domain.MaxOutputFrames,
	}
}

// SettingsPatch changes the settings whose fields are non-nil.
type SettingsPatch struct {
	GenerationMode   *domain.GenerationMode `json:"generation_mode,omitempty"`
	ImageProvider    *domain.Provider       `json:"image_provider,omitempty"`
	AspectRatio      *string                `json:"aspect_ratio,omitempty"`
	Resolution       *domain.Resolution     `json:"resolution,omitempty"`
	ActiveFrameCount *int                   `json:"active_frame_count,omitempty"`
}

// Credentials are the keys entered for this session. They live in memory only.
type Credentials struct {
	APIKey       string
	WavespeedKey string
}

// Snapshot is a deep copy of the session, safe to read without locking.
type Snapshot struct {
	Frames          []domain.Frame `json:"frames"`
	Settings        Settings       `json:"settings"`
	IsAnalyzing     bool           `json:"is_analyzing"`
	HasAPIKey       bool           `json:"has_api_key"`
	HasWavespeedKey bool           `json:"has_wavespeed_key"`
	// Version increases with every applied transition.
	Version uint64 `json:"version"`
}

// Frame returns the frame with id, or false.
func (s Snapshot) Frame(id domain.FrameID) (domain.Frame, bool) {
	if id < 0 || int(id) >= len(s.Frames) {
		return domain.Frame{}, false
	}
	return s.Frames[id], true
}

// Listener is told about every applied transition with the resulting state.
type Listener func(Snapshot)

type Session struct {
	mu         sync.Mutex
	frames     [domain.FrameCount]domain.Frame
	settings   Settings
	analyzing  bool
	creds      Credentials
	listeners  map[int]Listener
	nextListen int
	version    uint64

	notifyMu  sync.Mutex
	delivered uint64
}

func NewSession() *Session {
	s := &Session{settings: DefaultSettings(), listeners: make(map[int]Listener)}
	for i := range s.frames {
		s.frames[i] = blankFrame(domain.FrameID(i))
	}
	return s
}

func blankFrame(id domain.FrameID) domain.Frame {
	mode := domain.ModePrompt
	if id == domain.InputFrame {
		mode = domain.ModeImage
	}
	return domain.Frame{ID: id, Mode: mode, Status: domain.StatusIdle}
}

// Subscribe registers l and returns a function that removes it.
func (s *Session) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) Credentials() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

func (s *Session) snapshotLocked() Snapshot {
	frames := make([]domain.Frame, len(s.frames))
	for i, f := range s.frames {
		if f.Content.Result != nil {
			r := *f.Content.Result
			f.Content.Result = &r
		}
		frames[i] = f
	}
	return Snapshot{
		Frames:          frames,
		Settings:        s.settings,
		IsAnalyzing:     s.analyzing,
		HasAPIKey:       s.creds.APIKey != "",
		HasWavespeedKey: s.creds.WavespeedKey != "",
		Version:         s.version,
	}
}

// apply runs fn under the lock and, if it succeeds, notifies listeners with
// the new state after the lock is released. Deliveries are serialized and a
// snapshot older than one already delivered is dropped, so the last snapshot
// a listener sees is always the current state. Listeners may read the
// session but must not start a transition.
func (s *Session) apply(fn func() error) error {
	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.version++
	snap := s.snapshotLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if snap.Version <= s.delivered {
		return nil
	}
	s.delivered = snap.Version
	for _, l := range listeners {
		l(snap)
	}
	return nil
}

func (s *Session) frameLocked(id domain.FrameID) (*domain.Frame, error) {
	if id < 0 || int(id) >= len(s.frames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFrame, id)
	}
	return &s.frames[id], nil
}

func (s *Session) outputFrameLocked(id domain.FrameID) (*domain.Frame, error) {
	f, err := s.frameLocked(id)
	if err != nil {
		return nil, err
	}
	if !id.IsOutput() {
		return nil, fmt.Errorf("%w: %d", ErrNotOutputFrame, id)
	}
	return f, nil
}

// Settings transitions.

func (s *Session) ApplySettings(p SettingsPatch) error {
	return s.apply(func() error {
		next := s.settings
		if p.GenerationMode != nil {
			switch *p.GenerationMode {
			case domain.GenerationPrompt, domain.GenerationImage:
				next.GenerationMode = *p.GenerationMode
			default:
				return fmt.Errorf("%w: generation mode %q", ErrInvalidSettings, *p.GenerationMode)
			}
		}
		if p.ImageProvider != nil {
			switch *p.ImageProvider {
			case domain.ProviderGoogle, domain.ProviderWavespeed:
				next.ImageProvider = *p.ImageProvider
			default:
				return fmt.Errorf("%w: image provider %q", ErrInvalidSettings, *p.ImageProvider)
			}
		}
		if p.AspectRatio != nil {
			if !validAspectRatio(*p.AspectRatio) {
				return fmt.Errorf("%w: aspect ratio %q", ErrInvalidSettings, *p.AspectRatio)
			}
			next.AspectRatio = *p.AspectRatio
		}
		if p.Resolution != nil {
			switch *p.Resolution {
			case domain.Resolution2K, domain.Resolution4K:
				next.Resolution = *p.Resolution
			default:
				return fmt.Errorf("%w: resolution %q", ErrInvalidSettings, *p.Resolution)
			}
		}
		if p.ActiveFrameCount != nil {
			n := *p.ActiveFrameCount
			if n < 1 || n > domain.MaxOutputFrames {
				return fmt.Errorf("%w: active frame count %d", ErrInvalidSettings, n)
			}
			next.ActiveFrameCount = n
		}
		s.settings = next
		return nil
	})
}

func validAspectRatio(r string) bool {
	for _, a := range AspectRatios {
		if a == r {
			return true
		}
	}
	return false
}

// Credential transitions. An empty key clears it.

func (s *Session) SetAPIKey(key string) {
	_ = s.apply(func() error {
		s.creds.APIKey = key
		return nil
	})
}

func (s *Session) SetWavespeedKey(key string) {
	_ = s.apply(func() error {
		s.creds.WavespeedKey = key
		return nil
	})
}

// ClearCredentials forgets both keys.
func (s *Session) ClearCredentials() {
	_ = s.apply(func() error {
		s.creds = Credentials{}
		return nil
	})
}
