package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var sentenceEnds = map[rune]bool{
	'.': true, '!': true, '?': true,
	'।': true, '॥': true, // danda, double danda
}

// TruncateAtBoundary returns text unchanged if it has at most ceiling runes. Otherwise
// it cuts after the last sentence end inside the ceiling, else before the
// last whitespace, else at the ceiling itself. The result never exceeds
// ceiling runes and is the same for the same input.
func TruncateAtBoundary(text string, ceiling int) string {
	if ceiling <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= ceiling {
		return text
	}

	runes := []rune(text)
	window := runes[:ceiling]
	// the rune right after the window tells whether the last one ends a word
	next := runes[ceiling]

	sentenceCut, wordCut := -1, -1
	for i := len(window) - 1; i >= 0; i-- {
		r := window[i]
		if sentenceCut < 0 && sentenceEnds[r] {
			following := next
			if i+1 < len(window) {
				following = window[i+1]
			}
			if unicode.IsSpace(following) {
				sentenceCut = i + 1
				break
			}
		}
		if wordCut < 0 && unicode.IsSpace(r) {
			wordCut = i
		}
	}

	switch {
	case sentenceCut > 0:
		return strings.TrimSpace(string(window[:sentenceCut]))
	case unicode.IsSpace(next):
		return strings.TrimSpace(string(window))
	case wordCut > 0:
		return strings.TrimSpace(string(window[:wordCut]))
	default:
		return string(window)
	}
}
