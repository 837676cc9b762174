package driving

import (
	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
)

// ChangeDetector derives classified, scored changes between two
// consecutive versions of one source.
type ChangeDetector interface {
	// DetectChanges returns the changes from older to newer.
	// A nil older version yields no changes.
	DetectChanges(older, newer *domain.Version) []domain.Change
}

// RuleCatalog exposes the active classification rules.
type RuleCatalog interface {
	// Specs returns the rules in table order.
	Specs() []driven.RuleSpec

	// Classify scores text against the rules. Confidence below floor
	// yields ClassUnknown.
	Classify(text string, floor float64) (domain.Classification, float64)
}
