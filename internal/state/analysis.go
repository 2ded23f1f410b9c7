package state

import (
	"errors"

	"github.com/vbonduro/facet/internal/domain"
)

var ErrAnalysisRunning = errors.New("analysis already running")

// Outcome is the settled result of one frame's analysis. Result is the JSON
// text to store: the data on success, an error document otherwise.
type Outcome struct {
	ID      domain.FrameID
	Success bool
	Result  string
}

// BeginAnalysis marks the analyzing flag and puts every frame in ids into
// loading, flipped to its result side with previous output cleared. It fails
// with ErrAnalysisRunning if a run is already in progress.
func (s *Session) BeginAnalysis(ids []domain.FrameID) error {
	return s.apply(func() error {
		if s.analyzing {
			return ErrAnalysisRunning
		}
		for _, id := range ids {
			if _, err := s.outputFrameLocked(id); err != nil {
				return err
			}
		}
		s.analyzing = true
		for _, id := range ids {
			f := &s.frames[id]
			f.Status = domain.StatusLoading
			f.IsFlipped = true
			f.Content.Result = nil
			f.Content.OutputImage = ""
			f.Content.OutputKey = ""
			f.Content.ImageError = ""
		}
		return nil
	})
}

// ApplyAnalysisBatch stores every outcome at once and clears the analyzing
// flag. The generation mode is read at apply time: in image mode successful
// frames move to loading_image and their ids are returned for generation.
func (s *Session) ApplyAnalysisBatch(outcomes []Outcome) []domain.FrameID {
	var pending []domain.FrameID
	_ = s.apply(func() error {
		imageMode := s.settings.GenerationMode == domain.GenerationImage
		for _, o := range outcomes {
			f, err := s.outputFrameLocked(o.ID)
			if err != nil {
				continue
			}
			result := o.Result
			f.Content.Result = &result
			switch {
			case !o.Success:
				f.Status = domain.StatusError
			case imageMode:
				f.Status = domain.StatusLoadingImage
				pending = append(pending, o.ID)
			default:
				f.Status = domain.StatusSuccess
			}
		}
		s.analyzing = false
		return nil
	})
	return pending
}

// AbortAnalysis clears the analyzing flag after a run failed outside the
// per-frame isolation. Frame states are left as they are.
func (s *Session) AbortAnalysis() {
	_ = s.apply(func() error {
		s.analyzing = false
		return nil
	})
}

// Image transitions.

// BeginImage marks a frame as waiting for its generated image.
func (s *Session) BeginImage(id domain.FrameID) error {
	return s.apply(func() error {
		f, err := s.outputFrameLocked(id)
		if err != nil {
			return err
		}
		f.Status = domain.StatusLoadingImage
		f.Content.ImageError = ""
		return nil
	})
}

// CompleteImage stores a generated image. ref is what a client displays
// (URL or data URI); key names the stored copy, if any.
func (s *Session) CompleteImage(id domain.FrameID, ref, key string) error {
	return s.apply(func() error {
		f, err := s.outputFrameLocked(id)
		if err != nil {
			return err
		}
		f.Status = domain.StatusSuccess
		f.Content.OutputImage = ref
		f.Content.OutputKey = key
		f.Content.ImageError = ""
		return nil
	})
}

// FailImage records a generation failure. The analysis still succeeded, so
// the frame returns to success with the error noted.
func (s *Session) FailImage(id domain.FrameID, msg string) error {
	return s.apply(func() error {
		f, err := s.outputFrameLocked(id)
		if err != nil {
			return err
		}
		f.Status = domain.StatusSuccess
		f.Content.ImageError = msg
		return nil
	})
}
