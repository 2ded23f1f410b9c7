package domain

import "time"

// FrameID identifies a comparison slot. Frame 0 is the input frame, 1..4 are
// output frames.
type FrameID int

const (
	InputFrame      FrameID = 0
	MaxOutputFrames         = 4
	FrameCount              = MaxOutputFrames + 1
)

// IsOutput reports whether id names one of the output frames.
func (id FrameID) IsOutput() bool {
	return id >= 1 && id <= MaxOutputFrames
}

type Status string

const (
	StatusIdle         Status = "idle"
	StatusLoading      Status = "loading"
	StatusLoadingImage Status = "loading_image"
	StatusSuccess      Status = "success"
	StatusError        Status = "error"
)

// FrameMode is "image" or "text" for the input frame and "prompt" or "gem"
// for output frames.
type FrameMode string

const (
	ModeImage  FrameMode = "image"
	ModeText   FrameMode = "text"
	ModePrompt FrameMode = "prompt"
	ModeGem    FrameMode = "gem"
)

type GenerationMode string

const (
	GenerationPrompt GenerationMode = "prompt"
	GenerationImage  GenerationMode = "image"
)

type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderWavespeed Provider = "wavespeed"
)

type Resolution string

const (
	Resolution2K Resolution = "2k"
	Resolution4K Resolution = "4k"
)

// Content holds everything a frame can carry. Only one of InputImage and
// InputText is meaningful for the input frame, selected by the frame mode.
type Content struct {
	InputImage  string  `json:"input_image,omitempty"`
	InputText   string  `json:"input_text"`
	Prompt      string  `json:"prompt"`
	Result      *string `json:"result"`
	OutputImage string  `json:"output_image,omitempty"`
	OutputKey   string  `json:"output_key,omitempty"`
	ImageError  string  `json:"image_error,omitempty"`
}

type Frame struct {
	ID        FrameID   `json:"id"`
	Mode      FrameMode `json:"mode"`
	Content   Content   `json:"content"`
	Status    Status    `json:"status"`
	IsFlipped bool      `json:"is_flipped"`
}

type LibraryItemType string

const (
	LibraryPrompt LibraryItemType = "prompt"
	LibraryGem    LibraryItemType = "gem"
)

// Valid reports whether t is one of the known library item types.
func (t LibraryItemType) Valid() bool {
	return t == LibraryPrompt || t == LibraryGem
}

type LibraryItem struct {
	ID        string          `json:"id"`
	Type      LibraryItemType `json:"type"`
	Name      string          `json:"name"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
}

// AnalysisResult is the normalized outcome of one analysis call:
// either Success with Data (a JSON document) or a failure with Error.
type AnalysisResult struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GenerationResult carries exactly one of URL, B64JSON or Error.
type GenerationResult struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ImageRef returns the result as something an image element or exporter can
// consume: the URL itself or a PNG data URI.
func (r GenerationResult) ImageRef() string {
	if r.URL != "" {
		return r.URL
	}
	if r.B64JSON != "" {
		return "data:image/png;base64," + r.B64JSON
	}
	return ""
}
