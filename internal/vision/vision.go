package vision

import (
	"context"
)

// DefaultInstruction is the structured-description gem used when a caller has
// no prompt of its own. Its schema matches the fields the paragraph flattener
// knows about.
const DefaultInstruction = `# Role & Objective
You are VisionStruct, a forensic-level computer vision analyst. Analyze the image
and produce a JSON prompt with high anatomical and spatial fidelity for image
reproduction.

# Analysis Protocol
1. Macro sweep: scene context and atmosphere.
2. Anatomical audit: posture angles, limb placement, visible fingers and grip.
3. Texture and flaw scan: skin and fabric texture, environmental imperfections.

# Guidelines
* Quantify where possible: degrees for angles, counts for digits.
* Describe tension where clothing or skin meets surfaces.
* No generalizations.

# JSON Output Schema
{
  "meta": {"medium": "Film/Digital/Phone", "visual_fidelity": "Raw/Polished/Grainy"},
  "atmosphere_and_context": {"mood": "", "lighting_source": "", "shadow_play": ""},
  "subject_core": {"identity": "", "styling": ""},
  "anatomical_details": {
    "posture_and_spine": "", "limb_placement": "", "hands_and_fingers": "",
    "head_and_gaze": "", "facial_expression": ""
  },
  "attire_mechanics": {"garments": "", "fit_and_physics": ""},
  "environment_and_depth": {"background_elements": "", "surface_interactions": ""},
  "image_texture": {"quality_defects": "", "camera_characteristics": ""}
}`

// Input is what the input frame contributes to an analysis: image bytes with
// their MIME type, or free text.
type Input struct {
	ImageData []byte
	MimeType  string
	Text      string
}

// Request is one analysis call. APIKey overrides any key the adapter was
// configured with.
type Request struct {
	APIKey      string
	Instruction string
	Input       Input
}

// Analyzer sends one instruction and input to a multimodal model and returns
// the model's raw text, which is expected but not guaranteed to be JSON.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (string, error)
}
