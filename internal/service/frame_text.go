package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/vbonduro/facet/internal/domain"
	"github.com/vbonduro/facet/internal/flatten"
	"github.com/vbonduro/facet/internal/jsonval"
	"github.com/vbonduro/facet/internal/state"
)

// textKeys are the result fields that hold ready-to-use prompt text, in
// order of preference.
var textKeys = []string{"raw_output", "prompt", "image_prompt"}

func preferredText(doc *jsonval.Value) (string, bool) {
	for _, k := range textKeys {
		if v := doc.Get(k); v.Truthy() {
			if s, ok := v.Str(); ok {
				return s, true
			}
			return v.String(), true
		}
	}
	return "", false
}

// PromptText is the text sent to image generation for a stored result: a
// text field when one is present, else the compact JSON document.
func PromptText(result string) string {
	doc, err := jsonval.Parse([]byte(result))
	if err != nil {
		return result
	}
	if s, ok := preferredText(doc); ok {
		return s
	}
	return doc.String()
}

// CopyText is what a user copies from a result: a text field when one is
// present, else the stored result unchanged.
func CopyText(result string) string {
	doc, err := jsonval.Parse([]byte(result))
	if err != nil {
		return result
	}
	if s, ok := preferredText(doc); ok {
		return s
	}
	return result
}

const (
	defaultTitle  = "Gem Result"
	titleMaxRunes = 40
	titleLines    = 5
)

var roleLine = regexp.MustCompile(`(?i)(?:You are|Role:|Act as)\s+(?:(?:an?|the)\s+)?([^.\n,]+)`)

// FrameTitle derives a short display name from a gem prompt: the role it
// declares ("You are a critic" gives "CRITIC"), else its first line.
func FrameTitle(prompt string) string {
	if prompt == "" {
		return defaultTitle
	}
	lines := strings.Split(prompt, "\n")
	if len(lines) > titleLines {
		lines = lines[:titleLines]
	}
	for _, line := range lines {
		if m := roleLine.FindStringSubmatch(line); m != nil {
			if role := strings.TrimSpace(m[1]); role != "" {
				return strings.ToUpper(role)
			}
		}
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if utf8.RuneCountInString(line) > titleMaxRunes {
			return string([]rune(line)[:titleMaxRunes]) + "..."
		}
		return line
	}
	return defaultTitle
}

// Titles returns the display title of every frame in snap, indexed by id.
func Titles(snap state.Snapshot) []string {
	titles := make([]string, len(snap.Frames))
	for i, f := range snap.Frames {
		titles[i] = FrameTitle(f.Content.Prompt)
	}
	return titles
}

func (s *CompareService) result(id domain.FrameID) (string, error) {
	f, ok := s.session.Snapshot().Frame(id)
	if !ok {
		return "", state.ErrUnknownFrame
	}
	if f.Content.Result == nil {
		return "", ErrNoResult
	}
	return *f.Content.Result, nil
}

// Paragraph flattens a frame's result into prose of at most limit characters.
func (s *CompareService) Paragraph(id domain.FrameID, limit int) (string, error) {
	result, err := s.result(id)
	if err != nil {
		return "", err
	}
	return flatten.String(result, limit), nil
}

// CopyText returns the copyable text of a frame's result.
func (s *CompareService) CopyText(id domain.FrameID) (string, error) {
	result, err := s.result(id)
	if err != nil {
		return "", err
	}
	return CopyText(result), nil
}
