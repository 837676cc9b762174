package driven

import (
	"context"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// Normaliser transforms raw bytes into an ordered section sequence.
// Each normaliser handles one or more source types.
type Normaliser interface {
	// SupportedTypes returns the source types this normaliser handles.
	SupportedTypes() []domain.SourceType

	// Priority returns the selection priority (higher = preferred).
	// Format normalisers return 50-89; fallbacks return 1-9.
	Priority() int

	// Normalise converts one raw document into sections.
	// Output must be a pure function of raw.Content and raw.Type.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
type NormaliseResult struct {
	// Sections is the ordered section list with ids and positions assigned.
	Sections []domain.Section

	// ContentHash is domain.ContentHash(Sections).
	ContentHash string

	// Title is the document title when one was found.
	Title string

	// Metadata holds extraction metadata (method, page count, length).
	Metadata map[string]string
}
