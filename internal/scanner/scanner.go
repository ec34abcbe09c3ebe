// Package scanner finds Quarto variable shortcodes in document text.
//
// The recognized syntax is `{{< var dotted.key >}}` with flexible
// whitespace around the braces, the angle brackets and the tag word.
package scanner

import (
	"regexp"
	"strings"
)

// Match is one recognized shortcode. From is the offset of the first
// opening brace, To the offset just past the last closing brace.
type Match struct {
	From int
	To   int
	Key  string
}

// The tag word is case-sensitive and the key must be a single token.
// A second space-separated token after the key breaks the `\s*>` tail,
// so multi-token shortcodes never match.
var shortcodeRegex = regexp.MustCompile(`\{\{\s*<\s*var\s+([A-Za-z0-9_.]+)\s*>\s*\}\}`)

// FindAll returns every valid shortcode in text, in document order.
// Matches whose key fails IsValidKey are dropped.
func FindAll(text string) []Match {
	var matches []Match
	for _, idx := range shortcodeRegex.FindAllStringSubmatchIndex(text, -1) {
		key := text[idx[2]:idx[3]]
		if !IsValidKey(key) {
			continue
		}
		matches = append(matches, Match{From: idx[0], To: idx[1], Key: key})
	}
	return matches
}

// MatchAt returns the match whose span contains pos, inclusive on both
// ends so a cursor sitting directly before or after the shortcode still
// counts as inside it.
func MatchAt(text string, pos int) (Match, bool) {
	for _, m := range FindAll(text) {
		if pos >= m.From && pos <= m.To {
			return m, true
		}
		if m.From > pos {
			break
		}
	}
	return Match{}, false
}

// IsValidKey reports whether key is a well-formed dotted identifier:
// non-empty, letters/digits/underscore/dot only, no leading, trailing
// or doubled dot.
func IsValidKey(key string) bool {
	if key == "" {
		return false
	}
	if strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
		return false
	}
	if strings.Contains(key, "..") {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
