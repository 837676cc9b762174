package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// MaxSectionLevel is the deepest heading level a section may carry.
const MaxSectionLevel = 6

// Section is the atomic comparison unit within a version.
type Section struct {
	// ID is derived from the normalised heading and its occurrence ordinal.
	// The same logical section keeps its ID across versions while the
	// heading is unchanged.
	ID string

	// Heading is the normalised heading text. Empty for preamble and
	// paragraph-segmented sections.
	Heading string

	// Body is the whitespace-collapsed text between this heading and the next.
	Body string

	// Level is the heading depth: 1-6 for h1..h6, 0 for no heading.
	Level int

	// Position is the zero-based ordinal within the version.
	Position int
}

// SectionID derives a stable section identifier.
// ordinal is the zero-based occurrence index of heading among sections
// sharing the same normalised heading, so repeated headings stay distinct.
func SectionID(heading string, ordinal int) string {
	key := strings.ToLower(strings.TrimSpace(heading))
	sum := sha256.Sum256([]byte(key + "\x00" + strconv.Itoa(ordinal)))
	return "s-" + hex.EncodeToString(sum[:])[:16]
}

// ContentHash is a SHA-256 over the ordered heading and body sequence.
// Level and position do not contribute.
func ContentHash(sections []Section) string {
	h := sha256.New()
	for i := range sections {
		h.Write([]byte(sections[i].Heading))
		h.Write([]byte{0x1F})
		h.Write([]byte(sections[i].Body))
		h.Write([]byte{0x1E})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateSections checks that ids are unique and positions run 0..n-1.
func ValidateSections(sections []Section) error {
	seen := make(map[string]int, len(sections))
	for i := range sections {
		s := &sections[i]
		if s.ID == "" {
			return fmt.Errorf("%w: section %d has no id", ErrInvalidInput, i)
		}
		if prev, ok := seen[s.ID]; ok {
			return fmt.Errorf("%w: sections %d and %d share id %s", ErrInvalidInput, prev, i, s.ID)
		}
		seen[s.ID] = i
		if s.Position != i {
			return fmt.Errorf("%w: section %s has position %d, want %d", ErrInvalidInput, s.ID, s.Position, i)
		}
		if s.Level < 0 || s.Level > MaxSectionLevel {
			return fmt.Errorf("%w: section %s has level %d", ErrInvalidInput, s.ID, s.Level)
		}
	}
	return nil
}

// Text returns heading and body joined for scanning.
func (s *Section) Text() string {
	if s.Heading == "" {
		return s.Body
	}
	if s.Body == "" {
		return s.Heading
	}
	return s.Heading + "\n" + s.Body
}
