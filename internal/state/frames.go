package state

import (
	"github.com/vbonduro/facet/internal/domain"
)

// Input frame transitions.

// SetInputImage stores a data URI as the input image.
func (s *Session) SetInputImage(dataURI string) {
	_ = s.apply(func() error {
		s.frames[domain.InputFrame].Content.InputImage = dataURI
		return nil
	})
}

func (s *Session) ClearInputImage() {
	s.SetInputImage("")
}

func (s *Session) SetInputText(text string) {
	_ = s.apply(func() error {
		s.frames[domain.InputFrame].Content.InputText = text
		return nil
	})
}

// ToggleInputMode switches the input frame between image and text.
func (s *Session) ToggleInputMode() {
	_ = s.apply(func() error {
		f := &s.frames[domain.InputFrame]
		if f.Mode == domain.ModeImage {
			f.Mode = domain.ModeText
		} else {
			f.Mode = domain.ModeImage
		}
		return nil
	})
}

// Output frame transitions.

func (s *Session) SetPrompt(id domain.FrameID, prompt string) error {
	return s.apply(func() error {
		f, err := s.outputFrameLocked(id)
		if err != nil {
			return err
		}
		f.Content.Prompt = prompt
		return nil
	})
}

// LoadGem puts a saved gem into an output frame and shows its prompt side.
func (s *Session) LoadGem(id domain.FrameID, prompt string) error {
	return s.apply(func() error {
		f, err := s.outputFrameLocked(id)
		if err != nil {
			return err
		}
		f.Content.Prompt = prompt
		f.IsFlipped = false
		return nil
	})
}

func (s *Session) ToggleFlip(id domain.FrameID) error {
	return s.apply(func() error {
		f, err := s.frameLocked(id)
		if err != nil {
			return err
		}
		f.IsFlipped = !f.IsFlipped
		return nil
	})
}

// ResetFrame clears a frame's prompt and generated image so a different gem
// can be tried in it. The last result text is kept.
func (s *Session) ResetFrame(id domain.FrameID) error {
	return s.apply(func() error {
		f, err := s.frameLocked(id)
		if err != nil {
			return err
		}
		f.IsFlipped = false
		f.Status = domain.StatusIdle
		f.Content.Prompt = ""
		f.Content.OutputImage = ""
		f.Content.OutputKey = ""
		f.Content.ImageError = ""
		return nil
	})
}

// ResetAll clears the content of every frame. Frame modes, settings and
// credentials are kept.
func (s *Session) ResetAll() {
	_ = s.apply(func() error {
		for i := range s.frames {
			f := &s.frames[i]
			f.IsFlipped = false
			f.Status = domain.StatusIdle
			f.Content = domain.Content{}
		}
		return nil
	})
}
