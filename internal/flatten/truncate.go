package flatten

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var stopWordList = []string{
	"the", "a", "an", "is", "are", "was", "were", "of", "in", "on",
	"at", "to", "for", "with", "by", "that", "this", "it",
}

// stopWords matches whole stop words, ignoring ASCII case only. Each letter is
// spelled as a two-case class because (?i) would also fold non-ASCII runes
// such as U+017F into 's'.
var stopWords = regexp.MustCompile(`\b(?:` + asciiFoldAlternation(stopWordList) + `)\b`)

func asciiFoldAlternation(words []string) string {
	alts := make([]string, len(words))
	for i, w := range words {
		var b strings.Builder
		for _, r := range w {
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteRune(r - 'a' + 'A')
			b.WriteByte(']')
		}
		alts[i] = b.String()
	}
	return strings.Join(alts, "|")
}

// sentenceWindow is how far back from the cut a period may sit and still be
// used as the end of the paragraph.
const sentenceWindow = 100

// Truncate fits text into limit characters. Text already within the limit is
// returned unchanged. Otherwise stop words are dropped and whitespace
// collapsed; if that is still too long the text is cut at limit and, when a
// period falls within the last sentenceWindow characters, at that period.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	compressed := strings.Join(strings.Fields(stopWords.ReplaceAllString(text, " ")), " ")
	if utf8.RuneCountInString(compressed) <= limit {
		return compressed
	}

	cut := []rune(compressed)[:limit]
	for i := len(cut) - 1; i > limit-sentenceWindow && i >= 0; i-- {
		if cut[i] == '.' {
			return string(cut[:i+1])
		}
	}
	return string(cut)
}
