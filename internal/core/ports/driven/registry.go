package driven

import (
	"context"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// NormaliserRegistry selects the appropriate normaliser for a document
// and applies output validation uniformly.
type NormaliserRegistry interface {
	// Normalise transforms a raw document using the best matching normaliser.
	// Returns *domain.ExtractionFailure for parse errors and for empty
	// output from substantial input.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// SupportedTypes returns all source types that can be normalised.
	SupportedTypes() []domain.SourceType
}
