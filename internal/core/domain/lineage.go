package domain

import "time"

// VersionComparison summarises the difference between two versions.
type VersionComparison struct {
	OldVersionID string
	NewVersionID string
	Added        int
	Removed      int
	Modified     int
	Unchanged    int

	// Changes are the derived changes for the pair. Not persisted.
	Changes []Change
}

// SectionRevision is one entry in a section's history.
type SectionRevision struct {
	// VersionID is the version holding this revision.
	VersionID string

	// ExtractedAt is the version extraction time.
	ExtractedAt time.Time

	// Section is the section as it appeared in that version.
	Section Section

	// Changed is true when the body differs from the previous revision.
	Changed bool
}

// StoreStats describes the contents of the version store.
type StoreStats struct {
	Sources  int
	Versions int
	Sections int
	Changes  int

	// ByClassification counts changes per classification.
	ByClassification map[Classification]int

	// ByType counts changes per change type.
	ByType map[ChangeType]int
}

// IntegrityReport is the result of verifying one stored version.
type IntegrityReport struct {
	VersionID string
	Valid     bool

	// Problems lists each failed check.
	Problems []string
}
