// Package text provides locale-aware cleaning and case mapping for registry text.
package text

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalizer cleans cell text and applies case mappings for one language.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	tag language.Tag
}

// NewNormalizer returns a Normalizer for tag.
func NewNormalizer(tag language.Tag) *Normalizer {
	return &Normalizer{tag: tag}
}

// NewTurkish returns the Normalizer used for registry documents.
func NewTurkish() *Normalizer {
	return NewNormalizer(language.Turkish)
}

// Clean removes newlines, collapses whitespace runs and trims the edges.
// An empty result means the value is absent.
func (n *Normalizer) Clean(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	return strings.Join(strings.Fields(s), " ")
}

// Upper maps s to upper case ("i" becomes "İ" in Turkish).
func (n *Normalizer) Upper(s string) string {
	if s == "" {
		return ""
	}
	// cases.Caser is stateful, so one is built per call.
	return cases.Upper(n.tag).String(s)
}

// Lower maps s to lower case ("I" becomes "ı" in Turkish).
func (n *Normalizer) Lower(s string) string {
	if s == "" {
		return ""
	}
	return cases.Lower(n.tag).String(s)
}

// Title upper-cases the first letter of every word and lower-cases the rest.
func (n *Normalizer) Title(s string) string {
	if s == "" {
		return ""
	}
	return cases.Title(n.tag).String(s)
}

// Capitalize is Title applied to the cleaned value.
func (n *Normalizer) Capitalize(s string) string {
	return n.Title(n.Clean(s))
}

// TitleWords titlecases each space-separated word of s on its own.
func (n *Normalizer) TitleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = n.Title(w)
	}
	return strings.Join(words, " ")
}

// Split splits s on sep and cleans every part.
func (n *Normalizer) Split(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i, p := range parts {
		parts[i] = n.Clean(p)
	}
	return parts
}
