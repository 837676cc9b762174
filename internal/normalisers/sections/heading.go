package sections

import (
	"regexp"
	"strings"
	"unicode"
)

// maxHeadingLength bounds the length of a line that may be a heading.
const maxHeadingLength = 100

// Pre-compiled heading patterns.
var (
	markdownHeading = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*$`)
	numberedHeading = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+(\S.*)$`)
	allCapsHeading  = regexp.MustCompile(`^[A-Z][A-Z0-9 &/,'()-]*[A-Z0-9)]$`)
	colonHeading    = regexp.MustCompile(`^[A-Z][A-Za-z0-9 '&/()-]*:$`)
	sentenceEnd     = regexp.MustCompile(`[.!?;,]$`)
)

// DetectHeading reports whether a single line of plain text reads as a
// heading and estimates its level. The returned text has markers removed.
func DetectHeading(line string) (text string, level int, ok bool) {
	line = Normalise(line)
	if line == "" || len(line) > maxHeadingLength {
		return "", 0, false
	}

	if m := markdownHeading.FindStringSubmatch(line); m != nil {
		return m[2], len(m[1]), true
	}

	if m := numberedHeading.FindStringSubmatch(line); m != nil {
		if sentenceEnd.MatchString(line) || len(line) > 80 || !startsUpper(m[2]) {
			return "", 0, false
		}
		depth := strings.Count(m[1], ".") + 1
		return line, min(depth, 6), true
	}

	if colonHeading.MatchString(line) && len(line) < 60 {
		return strings.TrimSuffix(line, ":"), 2, true
	}

	if allCapsHeading.MatchString(line) && letterCount(line) >= 3 {
		if len(line) < 20 {
			return line, 1, true
		}
		return line, 2, true
	}

	if len(line) < 50 && !sentenceEnd.MatchString(line) && mostlyTitleCase(line) {
		if len(line) < 40 {
			return line, 2, true
		}
		return line, 3, true
	}

	return "", 0, false
}

// mostlyTitleCase returns true when more than half the words start upper
// case and the line has at most eight words.
func mostlyTitleCase(line string) bool {
	words := strings.Fields(line)
	if len(words) == 0 || len(words) > 8 {
		return false
	}
	upper := 0
	for _, w := range words {
		r := []rune(w)[0]
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper)/float64(len(words)) > 0.5
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r) || unicode.IsDigit(r)
	}
	return false
}
