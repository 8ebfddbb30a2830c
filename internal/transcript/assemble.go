// Package transcript assembles recognized text segments into one normalized
// transcript.
package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

// Options controls transcript assembly formatting behavior.
type Options struct {
	TrailingSpace       bool
	CapitalizeSentences bool
}

// Assemble joins final text segments and applies configured normalization.
// Interior whitespace runs collapse to single spaces.
func Assemble(finalSegments []string, opts Options) string {
	if len(finalSegments) == 0 {
		return ""
	}

	joined := strings.Join(finalSegments, " ")
	normalized := strings.Join(strings.Fields(joined), " ")
	if normalized == "" {
		return ""
	}

	if opts.CapitalizeSentences {
		normalized = capitalizeSentences(normalized)
	}

	if opts.TrailingSpace {
		return normalized + " "
	}
	return normalized
}

var standalonePronounI = regexp.MustCompile(`\bi\b`)

// capitalizeSentences uppercases the first letter after each terminal mark
// and normalizes the standalone pronoun "i".
func capitalizeSentences(text string) string {
	runes := []rune(text)
	atStart := true
	for i, r := range runes {
		if atStart && unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			atStart = false
			continue
		}
		switch r {
		case '.', '!', '?':
			atStart = true
		default:
			if !unicode.IsSpace(r) {
				atStart = false
			}
		}
	}
	return standalonePronounI.ReplaceAllString(string(runes), "I")
}
