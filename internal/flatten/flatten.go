// Package flatten collapses a structured image description into one bounded
// paragraph for consumers that want prose, such as video-generation prompts.
package flatten

import (
	"strings"

	"github.com/vbonduro/facet/internal/jsonval"
)

// DefaultLimit is the paragraph budget in characters.
const DefaultLimit = 2500

// field is one known semantic field. The table order is the output order.
type field struct {
	path []string
}

var fields = []field{
	{path: []string{"atmosphere_and_context", "mood"}},
	{path: []string{"atmosphere_and_context", "lighting_source"}},
	{path: []string{"atmosphere_and_context", "shadow_play"}},
	{path: []string{"subject_core", "identity"}},
	{path: []string{"subject_core", "styling"}},
	{path: []string{"anatomical_details", "posture_and_spine"}},
	{path: []string{"anatomical_details", "limb_placement"}},
	{path: []string{"anatomical_details", "hands_and_fingers"}},
	{path: []string{"anatomical_details", "head_and_gaze"}},
	{path: []string{"anatomical_details", "facial_expression"}},
	{path: []string{"attire_mechanics", "garments"}},
	{path: []string{"attire_mechanics", "fit_and_physics"}},
	{path: []string{"environment_and_depth", "background_elements"}},
	{path: []string{"environment_and_depth", "surface_interactions"}},
	{path: []string{"image_texture", "quality_defects"}},
	{path: []string{"image_texture", "camera_characteristics"}},
}

// skippedKeys are excluded from the schema-less fallback.
var skippedKeys = []string{"meta", "visual_fidelity"}

var unparsedStripper = strings.NewReplacer("{", "", "}", "", `"`, "")

// String flattens a JSON document given as text. Text that is not JSON has its
// braces and quotes stripped and is truncated as is.
func String(input string, limit int) string {
	doc, err := jsonval.Parse([]byte(input))
	if err != nil {
		return Truncate(unparsedStripper.Replace(input), limit)
	}
	return Paragraph(doc, limit)
}

// Paragraph flattens doc into at most limit characters. Known fields are taken
// in table order; when none is present every string in the document is used
// instead, then raw_output, then prompt.
func Paragraph(doc *jsonval.Value, limit int) string {
	if !doc.Truthy() {
		return ""
	}

	var parts []string
	for _, f := range fields {
		if s := text(doc.Path(f.path...)); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) > 0 {
		return Truncate(strings.Join(parts, " "), limit)
	}

	if all := jsonval.Strings(doc, skippedKeys...); len(all) > 0 {
		return Truncate(strings.Join(all, " "), limit)
	}
	for _, key := range []string{"raw_output", "prompt"} {
		if v := doc.Get(key); v.Truthy() {
			return Truncate(text(v), limit)
		}
	}
	return ""
}

// text renders a field value as trimmed prose. Array items are joined with a
// bare "," the way a list reads when stringified; objects contribute their
// string values.
func text(v *jsonval.Value) string {
	switch v.Kind() {
	case jsonval.String:
		s, _ := v.Str()
		return strings.TrimSpace(s)
	case jsonval.Number:
		lit, _ := v.NumberLiteral()
		return lit
	case jsonval.Bool:
		b, _ := v.Bool()
		if b {
			return "true"
		}
		return "false"
	case jsonval.Array:
		var items []string
		for _, item := range v.Items() {
			if s := text(item); s != "" {
				items = append(items, s)
			}
		}
		return strings.Join(items, ",")
	case jsonval.Object:
		return strings.TrimSpace(strings.Join(jsonval.Strings(v), " "))
	}
	return ""
}
