package domain

import (
	"fmt"
	"strings"
	"time"
)

// Version is one immutable normalisation snapshot of a source.
type Version struct {
	// ID is the globally unique, time-ordered version identifier.
	ID string

	// SourceID links to the Source this version belongs to.
	SourceID string

	// ContentHash is the hash of the normalised section sequence.
	ContentHash string

	// Sections is the ordered section list.
	Sections []Section

	// ExtractedAt is when the content was normalised.
	ExtractedAt time.Time

	// Metadata holds extraction metadata (title, method, page count).
	Metadata map[string]string

	// Sequence is the store-wide creation order. Set by the store.
	Sequence int64
}

// SectionByID returns the section with the given id, or nil.
func (v *Version) SectionByID(id string) *Section {
	for i := range v.Sections {
		if v.Sections[i].ID == id {
			return &v.Sections[i]
		}
	}
	return nil
}

// VersionDraft is a normalised result not yet assigned an identifier.
type VersionDraft struct {
	// SourceID links to the Source the draft belongs to.
	SourceID string

	// ContentHash is the hash of Sections.
	ContentHash string

	// Sections is the ordered section list.
	Sections []Section

	// ExtractedAt is when the content was normalised.
	ExtractedAt time.Time

	// Metadata holds extraction metadata.
	Metadata map[string]string
}

// Validate checks the draft can be committed.
func (d *VersionDraft) Validate() error {
	if strings.TrimSpace(d.SourceID) == "" {
		return fmt.Errorf("%w: source id is required", ErrInvalidInput)
	}
	if d.ContentHash == "" {
		return fmt.Errorf("%w: content hash is required", ErrInvalidInput)
	}
	return ValidateSections(d.Sections)
}

// Version materialises the draft with an assigned id.
func (d *VersionDraft) Version(id string) *Version {
	return &Version{
		ID:          id,
		SourceID:    d.SourceID,
		ContentHash: d.ContentHash,
		Sections:    CloneSections(d.Sections),
		ExtractedAt: d.ExtractedAt,
		Metadata:    CloneMetadata(d.Metadata),
	}
}

// CloneSections returns a copy of sections.
func CloneSections(sections []Section) []Section {
	if sections == nil {
		return nil
	}
	out := make([]Section, len(sections))
	copy(out, sections)
	return out
}

// CloneMetadata returns a copy of m.
func CloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of the version.
func (v *Version) Clone() *Version {
	c := *v
	c.Sections = CloneSections(v.Sections)
	c.Metadata = CloneMetadata(v.Metadata)
	return &c
}
