package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// ChangeStore reads the append-only change log.
// Changes are written only through VersionStore.CommitVersion.
type ChangeStore interface {
	// GetChange retrieves a change by id.
	GetChange(ctx context.Context, id string) (*domain.Change, error)

	// ListChanges returns all changes for a source in detection order.
	ListChanges(ctx context.Context, sourceID string) ([]domain.Change, error)

	// ListChangesBetween returns the changes for one version pair.
	ListChangesBetween(ctx context.Context, oldVersionID, newVersionID string) ([]domain.Change, error)

	// ListChangesSince returns changes detected at or after since, across
	// all sources, in detection order. This is the reporting feed.
	ListChangesSince(ctx context.Context, since time.Time) ([]domain.Change, error)

	// CountChanges returns change totals by classification and type.
	CountChanges(ctx context.Context) (map[domain.Classification]int, map[domain.ChangeType]int, error)
}
