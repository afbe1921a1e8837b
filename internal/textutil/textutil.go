package textutil

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultExcerptLength bounds excerpts produced by CleanExcerpt when callers
// pass a non-positive max.
const DefaultExcerptLength = 150

// Ellipsis is appended to truncated excerpts.
const Ellipsis = "..."

var (
	// Tolerant tag stripper: matches anything bracketed, including tags the
	// publisher never closed properly. An unterminated "<" at the end of the
	// input is handled separately.
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	danglingTag       = regexp.MustCompile(`<[^>]*$`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	nonAlnumPattern   = regexp.MustCompile(`[^a-z0-9]+`)
)

// DecodeEntities converts HTML/XML character entities (named and numeric) to
// literal characters. Empty input yields an empty string; it never fails.
func DecodeEntities(text string) string {
	if text == "" {
		return ""
	}
	decoded := html.UnescapeString(text)
	// Non-breaking spaces render poorly in plain-text excerpts.
	return strings.ReplaceAll(decoded, " ", " ")
}

// CleanExcerpt decodes entities, strips markup, collapses whitespace and
// truncates to maxLen runes, appending an ellipsis when anything was cut.
// Decoding runs first so entity-encoded tags (&lt;img ...&gt; in
// double-escaped publisher descriptions) are stripped too, never shown.
// Malformed or unclosed tags are tolerated, never an error.
func CleanExcerpt(raw string, maxLen int) string {
	if raw == "" {
		return ""
	}
	if maxLen <= 0 {
		maxLen = DefaultExcerptLength
	}

	text := DecodeEntities(raw)
	text = tagPattern.ReplaceAllString(text, " ")
	text = danglingTag.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	return strings.TrimSpace(string(r[:maxLen])) + Ellipsis
}

// foldDiacritics drops combining marks so "café" slugs as "cafe".
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify derives a deterministic, URL-safe identifier: lowercase, diacritics
// folded, runs of non-alphanumerics collapsed to a single hyphen.
func Slugify(s string) string {
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	s = nonAlnumPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
