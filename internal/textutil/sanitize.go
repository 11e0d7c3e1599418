// Package textutil cleans user-supplied text before it is stored or exported.
package textutil

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// SanitizeText drops HTML markup and control characters and trims the result.
// Entities escaped by the policy are decoded again so "A & B" survives intact.
func SanitizeText(s string) string {
	cleaned := html.UnescapeString(stripPolicy.Sanitize(s))
	return strings.TrimSpace(StripUnprintable(cleaned))
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// SanitizeForFormulaInjection quotes cells that a spreadsheet would evaluate
// as a formula.
func SanitizeForFormulaInjection(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	switch trimmed[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

// StripUnprintable keeps printable runes plus tab, newline and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}
