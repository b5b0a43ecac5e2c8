package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// clipRunes truncates s to max runes; max <= 0 disables clipping.
func clipRunes(s string, max int) string {
	if max > 0 && utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}

// titleCase normalizes spacing and title-cases each word for the locale
// ("jane   o'NEIL" -> "Jane O'neil"). language.Und falls back to English.
func titleCase(s string, tag language.Tag) string {
	s = normalizeTitle(s)
	if s == "" {
		return ""
	}
	if tag == language.Und {
		tag = language.English
	}
	return cases.Title(tag).String(s)
}
