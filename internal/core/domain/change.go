package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ChangeType describes how a section differs between two versions.
type ChangeType string

// Change types.
const (
	// ChangeAdded is a section present only in the newer version.
	ChangeAdded ChangeType = "added"

	// ChangeRemoved is a section present only in the older version.
	ChangeRemoved ChangeType = "removed"

	// ChangeModified is a matched section whose body differs.
	ChangeModified ChangeType = "modified"
)

// IsValid returns true if the change type is recognised.
func (t ChangeType) IsValid() bool {
	return t == ChangeAdded || t == ChangeRemoved || t == ChangeModified
}

// Classification is the category assigned to a change.
type Classification string

// Classifications. The set is closed.
const (
	ClassSecurity      Classification = "security"
	ClassFeature       Classification = "feature"
	ClassDeprecation   Classification = "deprecation"
	ClassBugfix        Classification = "bugfix"
	ClassDocumentation Classification = "documentation"
	ClassConfiguration Classification = "configuration"
	ClassUnknown       Classification = "unknown"
)

// AllClassifications returns every classification in table order.
// ClassUnknown is last.
func AllClassifications() []Classification {
	return []Classification{
		ClassSecurity,
		ClassDeprecation,
		ClassBugfix,
		ClassFeature,
		ClassConfiguration,
		ClassDocumentation,
		ClassUnknown,
	}
}

// IsValid returns true if the classification is recognised.
func (c Classification) IsValid() bool {
	for _, known := range AllClassifications() {
		if c == known {
			return true
		}
	}
	return false
}

// ParseClassification converts a string into a Classification.
func ParseClassification(s string) (Classification, error) {
	c := Classification(s)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: classification %q", ErrInvalidInput, s)
	}
	return c, nil
}

// Change is a classified, scored difference between two consecutive
// versions of one source. Changes are append-only.
type Change struct {
	// ID is derived from the version pair, section and type.
	ID string

	// SourceID links to the Source.
	SourceID string

	// OldVersionID is the earlier version of the pair.
	OldVersionID string

	// NewVersionID is the later version of the pair.
	NewVersionID string

	// Type is added, removed or modified.
	Type ChangeType

	// SectionID is the section identity in the version that holds it.
	// For modified changes this is the new version's section id.
	SectionID string

	// Heading is the section heading (new side when present).
	Heading string

	// Level is the section heading level.
	Level int

	// OldContent is the old section body. Empty for added.
	OldContent string

	// NewContent is the new section body. Empty for removed.
	NewContent string

	// Diff is a unified diff of OldContent against NewContent.
	Diff string

	// ImpactScore estimates consequence in [0,1].
	ImpactScore float64

	// Classification is the assigned category.
	Classification Classification

	// ConfidenceScore estimates classification reliability in [0,1].
	ConfidenceScore float64

	// DetectedAt is when the change was derived.
	DetectedAt time.Time
}

// ChangeID derives a deterministic change identifier.
func ChangeID(oldVersionID, newVersionID, sectionID string, t ChangeType) string {
	sum := sha256.Sum256([]byte(oldVersionID + "|" + newVersionID + "|" + sectionID + "|" + string(t)))
	return "c-" + hex.EncodeToString(sum[:])[:24]
}

// Validate checks the change carries complete evidence.
func (c *Change) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("%w: change id is required", ErrInvalidInput)
	case c.OldVersionID == "" || c.NewVersionID == "":
		return fmt.Errorf("%w: change %s must reference both versions", ErrInvalidInput, c.ID)
	case !c.Type.IsValid():
		return fmt.Errorf("%w: change %s has type %q", ErrInvalidInput, c.ID, c.Type)
	case !c.Classification.IsValid():
		return fmt.Errorf("%w: change %s has classification %q", ErrInvalidInput, c.ID, c.Classification)
	case c.OldContent == "" && c.NewContent == "":
		return fmt.Errorf("%w: change %s carries no content", ErrInvalidInput, c.ID)
	case c.ImpactScore < 0 || c.ImpactScore > 1:
		return fmt.Errorf("%w: change %s impact %v out of range", ErrInvalidInput, c.ID, c.ImpactScore)
	case c.ConfidenceScore < 0 || c.ConfidenceScore > 1:
		return fmt.Errorf("%w: change %s confidence %v out of range", ErrInvalidInput, c.ID, c.ConfidenceScore)
	}
	return nil
}
