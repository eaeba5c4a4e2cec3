package content

import (
	"strings"
	"unicode"
)

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// NormalizeTag lowercases and trims a tag for comparison.
func NormalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// FilterEmpty removes empty/whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// HasTag reports whether tags contains tag, ignoring case.
func HasTag(tags []string, tag string) bool {
	want := NormalizeTag(tag)
	for _, t := range tags {
		if NormalizeTag(t) == want {
			return true
		}
	}
	return false
}

// Truncate caps s at max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Keywords returns the distinct lowercase words of s longer than three
// letters, in order of first appearance.
func Keywords(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) <= 3 || stopwords[w] {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

var stopwords = map[string]bool{
	"about": true, "after": true, "also": true, "from": true, "have": true,
	"into": true, "more": true, "that": true, "their": true, "them": true,
	"then": true, "there": true, "these": true, "they": true, "this": true,
	"what": true, "when": true, "where": true, "which": true, "with": true,
	"your": true, "will": true, "does": true, "than": true,
}
