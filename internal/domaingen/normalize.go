package domaingen

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold decomposes accented letters and strips the combining marks,
// turning ş/ğ/ü/ç/ö (and most other Latin diacritics) into their ASCII base.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var (
	bracketRe    = regexp.MustCompile(`\(.*?\)|\[.*?\]`)
	numPrefixRe  = regexp.MustCompile(`^\d+\s+`)
	nonTokenRe   = regexp.MustCompile(`[^a-z0-9]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize lowercases a raw facility name and folds it to plain ASCII.
// Dotless ı has no combining-mark decomposition, so it is mapped by hand;
// Turkish İ lowercases to i plus a combining dot, which the fold removes.
// Ampersands and other punctuation never survive into tokens.
func Normalize(name string) string {
	s := name

	// Names like "PEARL HOUSE - SULTANAHMET" carry a location suffix after
	// the dash; the part before it is the name proper.
	if i := strings.Index(s, " - "); i >= 0 {
		s = s[:i]
	}

	s = bracketRe.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ı", "i")
	if folded, _, err := transform.String(asciiFold, s); err == nil {
		s = folded
	}
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = numPrefixRe.ReplaceAllString(s, "")
	return s
}

// Tokenize splits a normalized name into plain ASCII alphanumeric tokens.
func Tokenize(normalized string) []string {
	var tokens []string
	for _, p := range nonTokenRe.Split(normalized, -1) {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}
