// Package record defines the canonical stored form of sources, versions
// and changes, and the checksums kept alongside them.
//
// A checksum is the hex SHA-256 of the canonical JSON encoding. Struct
// field order is fixed and map keys are sorted by encoding/json, so the
// encoding of equal values is byte-identical. Times are encoded in UTC
// with nanosecond precision.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// Section is the stored form of a section.
type Section struct {
	ID       string `json:"id"`
	Heading  string `json:"heading"`
	Body     string `json:"body"`
	Level    int    `json:"level"`
	Position int    `json:"position"`
}

// Version is the stored form of a version. Sequence is an index column
// and is not part of the record.
type Version struct {
	ID          string            `json:"id"`
	SourceID    string            `json:"source_id"`
	ContentHash string            `json:"content_hash"`
	Sections    []Section         `json:"sections"`
	ExtractedAt string            `json:"extracted_at"`
	Metadata    map[string]string `json:"metadata"`
}

// Change is the stored form of a change.
type Change struct {
	ID              string  `json:"id"`
	SourceID        string  `json:"source_id"`
	OldVersionID    string  `json:"old_version_id"`
	NewVersionID    string  `json:"new_version_id"`
	Type            string  `json:"type"`
	SectionID       string  `json:"section_id"`
	Heading         string  `json:"heading"`
	Level           int     `json:"level"`
	OldContent      string  `json:"old_content"`
	NewContent      string  `json:"new_content"`
	Diff            string  `json:"diff"`
	ImpactScore     float64 `json:"impact_score"`
	Classification  string  `json:"classification"`
	ConfidenceScore float64 `json:"confidence_score"`
	DetectedAt      string  `json:"detected_at"`
}

// Source is the stored form of a source.
type Source struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
}

// FormatTime renders t in the canonical stored form.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime reads a time in the canonical stored form.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FromVersion converts a domain version.
func FromVersion(v *domain.Version) Version {
	secs := make([]Section, len(v.Sections))
	for i, s := range v.Sections {
		secs[i] = Section(s)
	}
	return Version{
		ID:          v.ID,
		SourceID:    v.SourceID,
		ContentHash: v.ContentHash,
		Sections:    secs,
		ExtractedAt: FormatTime(v.ExtractedAt),
		Metadata:    v.Metadata,
	}
}

// ToDomain converts the record back to a domain version.
func (r *Version) ToDomain() (*domain.Version, error) {
	extractedAt, err := ParseTime(r.ExtractedAt)
	if err != nil {
		return nil, err
	}
	secs := make([]domain.Section, len(r.Sections))
	for i, s := range r.Sections {
		secs[i] = domain.Section(s)
	}
	return &domain.Version{
		ID:          r.ID,
		SourceID:    r.SourceID,
		ContentHash: r.ContentHash,
		Sections:    secs,
		ExtractedAt: extractedAt,
		Metadata:    r.Metadata,
	}, nil
}

// FromChange converts a domain change.
func FromChange(c *domain.Change) Change {
	return Change{
		ID:              c.ID,
		SourceID:        c.SourceID,
		OldVersionID:    c.OldVersionID,
		NewVersionID:    c.NewVersionID,
		Type:            string(c.Type),
		SectionID:       c.SectionID,
		Heading:         c.Heading,
		Level:           c.Level,
		OldContent:      c.OldContent,
		NewContent:      c.NewContent,
		Diff:            c.Diff,
		ImpactScore:     c.ImpactScore,
		Classification:  string(c.Classification),
		ConfidenceScore: c.ConfidenceScore,
		DetectedAt:      FormatTime(c.DetectedAt),
	}
}

// ToDomain converts the record back to a domain change.
func (r *Change) ToDomain() (*domain.Change, error) {
	detectedAt, err := ParseTime(r.DetectedAt)
	if err != nil {
		return nil, err
	}
	return &domain.Change{
		ID:              r.ID,
		SourceID:        r.SourceID,
		OldVersionID:    r.OldVersionID,
		NewVersionID:    r.NewVersionID,
		Type:            domain.ChangeType(r.Type),
		SectionID:       r.SectionID,
		Heading:         r.Heading,
		Level:           r.Level,
		OldContent:      r.OldContent,
		NewContent:      r.NewContent,
		Diff:            r.Diff,
		ImpactScore:     r.ImpactScore,
		Classification:  domain.Classification(r.Classification),
		ConfidenceScore: r.ConfidenceScore,
		DetectedAt:      detectedAt,
	}, nil
}

// FromSource converts a domain source.
func FromSource(s *domain.Source) Source {
	return Source{
		ID:        s.ID,
		URL:       s.URL,
		Type:      string(s.Type),
		CreatedAt: FormatTime(s.CreatedAt),
	}
}

// ToDomain converts the record back to a domain source.
func (r *Source) ToDomain() (*domain.Source, error) {
	createdAt, err := ParseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &domain.Source{
		ID:        r.ID,
		URL:       r.URL,
		Type:      domain.SourceType(r.Type),
		CreatedAt: createdAt,
	}, nil
}

// Encode returns the canonical JSON of a record.
func Encode(rec any) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Seal encodes a record and returns the encoding with its checksum.
func Seal(rec any) (data []byte, checksum string, err error) {
	data, err = Encode(rec)
	if err != nil {
		return nil, "", err
	}
	return data, Checksum(data), nil
}

// VersionChecksum returns the checksum of a domain version.
func VersionChecksum(v *domain.Version) (string, error) {
	_, sum, err := Seal(FromVersion(v))
	return sum, err
}

// ChangeChecksum returns the checksum of a domain change.
func ChangeChecksum(c *domain.Change) (string, error) {
	_, sum, err := Seal(FromChange(c))
	return sum, err
}

// Verify recomputes the checksum of data and compares it to stored.
// A mismatch returns a *domain.CorruptionError.
func Verify(entity, id string, data []byte, stored string) error {
	if computed := Checksum(data); computed != stored {
		return &domain.CorruptionError{Entity: entity, ID: id, Expected: stored, Actual: computed}
	}
	return nil
}

// NewVersionID returns a time-ordered UUIDv7 string.
func NewVersionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate version id: %w", err)
	}
	return id.String(), nil
}

// CheckChanges verifies derived changes belong to v and carry complete
// evidence before they are persisted.
func CheckChanges(v *domain.Version, changes []domain.Change) error {
	seen := make(map[string]bool, len(changes))
	for i := range changes {
		c := &changes[i]
		if err := c.Validate(); err != nil {
			return err
		}
		if c.NewVersionID != v.ID || c.SourceID != v.SourceID {
			return fmt.Errorf("%w: change %s does not belong to version %s", domain.ErrInvalidInput, c.ID, v.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate change id %s", domain.ErrInvalidInput, c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}
