package sections

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// punctuation maps typographic variants to their ASCII form and drops
// zero-width characters.
var punctuation = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201a", "'", "\u201b", "'", "`", "'",
	"\u201c", "\"", "\u201d", "\"", "\u201e", "\"", "\u201f", "\"",
	"\u00ab", "\"", "\u00bb", "\"",
	"\u2013", "-", "\u2014", "-", "\u2015", "-", "\u2212", "-",
	"\u200b", "", "\u200c", "", "\u200d", "", "\u2060", "", "\ufeff", "",
	"\u00ad", "",
)

// Normalise canonicalises one run of text: NFKC, ASCII quotes and
// dashes, no zero-width characters, single spaces, trimmed.
func Normalise(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = punctuation.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Paragraphs splits text on blank lines and normalises each paragraph.
// Empty paragraphs are dropped.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out []string
	var cur []string
	flush := func() {
		if p := Normalise(strings.Join(cur, " ")); p != "" {
			out = append(out, p)
		}
		cur = cur[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}

// Lines splits a block into non-empty trimmed lines without collapsing them.
func Lines(block string) []string {
	block = strings.ReplaceAll(block, "\r\n", "\n")
	var out []string
	for _, line := range strings.Split(block, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
