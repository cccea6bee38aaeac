package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextNormalizer folds message text into a canonical form so duplicate and
// phrase checks cannot be evaded with case tricks, extra whitespace, or
// decorated unicode. This is not safe for concurrent use.
type TextNormalizer struct {
	transformer transform.Transformer
}

// NewTextNormalizer creates a new TextNormalizer instance.
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{
		transformer: transform.Chain(
			norm.NFKD,                          // Compatibility decomposition
			runes.Remove(runes.In(unicode.Mn)), // Strip combining marks
			runes.Map(unicode.ToLower),
			norm.NFKC,
		),
	}
}

// Normalize lowercases, strips marks, and collapses whitespace runs to a
// single space. Returns the whitespace-collapsed lowercase fallback if the
// transform fails.
func (n *TextNormalizer) Normalize(s string) string {
	s = CollapseWhitespace(s)
	if s == "" {
		return ""
	}

	result, _, err := transform.String(n.transformer, s)
	if err != nil || result == "" {
		return strings.ToLower(s)
	}
	return result
}

// CollapseWhitespace trims the string and squeezes every whitespace run into
// a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CapsRatio returns the fraction of letters in s that are uppercase.
// Strings without letters report 0.
func CapsRatio(s string) float64 {
	var letters, upper int
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}
