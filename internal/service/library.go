package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vbonduro/facet/internal/domain"
	"github.com/vbonduro/facet/internal/state"
	"github.com/vbonduro/facet/internal/store"
)

var (
	ErrNothingToSave = errors.New("nothing to save")
	ErrMissingName   = errors.New("library item name is required")
	ErrWrongItemType = errors.New("library item type does not fit this frame")
)

// libraryRepository is satisfied by store.LibraryStore and
// store.PostgresLibraryStore.
type libraryRepository interface {
	Add(ctx context.Context, typ domain.LibraryItemType, name, content string) (*domain.LibraryItem, error)
	GetByID(ctx context.Context, id string) (*domain.LibraryItem, error)
	List(ctx context.Context) ([]*domain.LibraryItem, error)
	Delete(ctx context.Context, id string) error
}

// AddToLibrary saves a new item. Blank content or name is refused, and a full
// library returns store.ErrLibraryFull.
func (s *CompareService) AddToLibrary(ctx context.Context, typ domain.LibraryItemType, name, content string) (*domain.LibraryItem, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrNothingToSave
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingName
	}
	item, err := s.library.Add(ctx, typ, name, content)
	if err != nil {
		return nil, err
	}
	s.logger.Info("library item saved", "item_id", item.ID, "type", item.Type)
	return item, nil
}

// itemTypeFor is the kind of library item a frame holds: the input frame
// keeps prompts, output frames keep gems.
func itemTypeFor(id domain.FrameID) domain.LibraryItemType {
	if id == domain.InputFrame {
		return domain.LibraryPrompt
	}
	return domain.LibraryGem
}

// SaveFrameToLibrary stores a frame's editable text under name: the input
// text for the input frame, the prompt for an output frame.
func (s *CompareService) SaveFrameToLibrary(ctx context.Context, id domain.FrameID, name string) (*domain.LibraryItem, error) {
	f, ok := s.session.Snapshot().Frame(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", state.ErrUnknownFrame, id)
	}
	content := f.Content.Prompt
	if id == domain.InputFrame {
		content = f.Content.InputText
	}
	return s.AddToLibrary(ctx, itemTypeFor(id), name, content)
}

// LoadLibraryItem copies an item into a frame. Prompts load into the input
// frame's text; gems load into an output frame's prompt.
func (s *CompareService) LoadLibraryItem(ctx context.Context, itemID string, frameID domain.FrameID) error {
	item, err := s.library.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return store.ErrNotFound
	}
	if _, ok := s.session.Snapshot().Frame(frameID); !ok {
		return fmt.Errorf("%w: %d", state.ErrUnknownFrame, frameID)
	}
	if item.Type != itemTypeFor(frameID) {
		return fmt.Errorf("%w: %s into frame %d", ErrWrongItemType, item.Type, frameID)
	}
	if frameID == domain.InputFrame {
		s.session.SetInputText(item.Content)
		return nil
	}
	return s.session.LoadGem(frameID, item.Content)
}

func (s *CompareService) RemoveLibraryItem(ctx context.Context, itemID string) error {
	return s.library.Delete(ctx, itemID)
}

// ListLibrary returns items newest first, only those of typ when it is set.
func (s *CompareService) ListLibrary(ctx context.Context, typ domain.LibraryItemType) ([]*domain.LibraryItem, error) {
	items, err := s.library.List(ctx)
	if err != nil {
		return nil, err
	}
	if typ == "" {
		return items, nil
	}
	filtered := make([]*domain.LibraryItem, 0, len(items))
	for _, it := range items {
		if it.Type == typ {
			filtered = append(filtered, it)
		}
	}
	return filtered, nil
}

// LibraryEntry is one item of a library seed file.
type LibraryEntry struct {
	Type    domain.LibraryItemType `yaml:"type"`
	Name    string                 `yaml:"name"`
	Content string                 `yaml:"content"`
}

type libraryFile struct {
	Items []LibraryEntry `yaml:"items"`
}

// ParseLibraryYAML reads a seed file of the form
//
//	items:
//	  - type: gem
//	    name: Critic
//	    content: You are a critic...
func ParseLibraryYAML(r io.Reader) ([]LibraryEntry, error) {
	var f libraryFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse library file: %w", err)
	}
	for i, e := range f.Items {
		if !e.Type.Valid() {
			return nil, fmt.Errorf("library entry %d: invalid type %q", i+1, e.Type)
		}
	}
	return f.Items, nil
}

// ImportLibrary adds entries in order until the library is full. It returns
// how many were added; hitting the cap is reported as store.ErrLibraryFull
// alongside the count.
func (s *CompareService) ImportLibrary(ctx context.Context, entries []LibraryEntry) (int, error) {
	added := 0
	for _, e := range entries {
		if _, err := s.AddToLibrary(ctx, e.Type, e.Name, e.Content); err != nil {
			if errors.Is(err, ErrNothingToSave) || errors.Is(err, ErrMissingName) {
				s.logger.Warn("skipping library entry", "name", e.Name, "error", err)
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}
