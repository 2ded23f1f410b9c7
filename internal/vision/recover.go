package vision

import (
	"strings"

	"github.com/vbonduro/facet/internal/jsonval"
)

var fenceStripper = strings.NewReplacer("```json", "", "```", "")

// Recover turns model text into a document. It tries, in order: the text as
// is, the text without markdown fences, and the span from the first '{' to
// the last '}'. When nothing parses it returns {"raw_output": text} with the
// text untouched, so callers always have something to render and copy.
func Recover(text string) *jsonval.Value {
	if v, err := jsonval.Parse([]byte(text)); err == nil {
		return v
	}

	cleaned := strings.TrimSpace(fenceStripper.Replace(text))
	if v, err := jsonval.Parse([]byte(cleaned)); err == nil {
		return v
	}

	first := strings.IndexByte(cleaned, '{')
	last := strings.LastIndexByte(cleaned, '}')
	if first >= 0 && last > first {
		if v, err := jsonval.Parse([]byte(cleaned[first : last+1])); err == nil {
			return v
		}
	}

	return jsonval.NewObject(jsonval.Member{Key: "raw_output", Value: jsonval.NewString(text)})
}
