package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// LineageService answers audit queries over stored versions and changes.
type LineageService interface {
	// Sources lists all known sources.
	Sources(ctx context.Context) ([]domain.Source, error)

	// Versions returns every version of a source, oldest first.
	Versions(ctx context.Context, sourceID string) ([]domain.Version, error)

	// Version returns one version by id.
	Version(ctx context.Context, versionID string) (*domain.Version, error)

	// Changes returns changes for a source, or for all sources when
	// sourceID is empty, detected at or after since.
	Changes(ctx context.Context, sourceID string, since time.Time) ([]domain.Change, error)

	// SectionHistory traces one section across all versions of a source.
	SectionHistory(ctx context.Context, sourceID, sectionID string) ([]domain.SectionRevision, error)

	// Compare summarises the differences between any two versions of a source.
	Compare(ctx context.Context, oldVersionID, newVersionID string) (*domain.VersionComparison, error)

	// Stats returns storage statistics.
	Stats(ctx context.Context) (*domain.StoreStats, error)

	// VerifyVersion re-checks integrity of one stored version.
	VerifyVersion(ctx context.Context, versionID string) (*domain.IntegrityReport, error)
}
