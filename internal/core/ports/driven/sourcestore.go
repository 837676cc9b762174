package driven

import (
	"context"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// SourceStore persists monitored source identities.
// Sources are immutable and never deleted.
type SourceStore interface {
	// EnsureSource registers a source if it does not exist and returns
	// the stored identity. An existing source is returned unchanged.
	EnsureSource(ctx context.Context, source domain.Source) (*domain.Source, error)

	// GetSource retrieves a source by ID.
	// Returns domain.ErrNotFound if unknown.
	GetSource(ctx context.Context, id string) (*domain.Source, error)

	// ListSources returns all sources ordered by ID.
	ListSources(ctx context.Context) ([]domain.Source, error)
}
