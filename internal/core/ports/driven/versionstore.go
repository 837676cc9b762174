package driven

import (
	"context"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// ChangeDeriver computes the changes between the latest stored version
// (nil for a first version) and the version being committed.
type ChangeDeriver func(older, newer *domain.Version) ([]domain.Change, error)

// VersionStore persists immutable versions and exposes lineage.
// Writes are serialised per source; different sources never contend.
type VersionStore interface {
	// StoreVersion atomically persists a new version and returns its id.
	// On failure nothing is persisted and the error wraps domain.ErrStorageWrite.
	StoreVersion(ctx context.Context, sourceID string, sections []domain.Section,
		contentHash string, metadata map[string]string) (string, error)

	// CommitVersion persists a version together with its derived changes
	// in one transaction. Under the per-source lock it loads the latest
	// version, returns it with domain.ErrDuplicateContent when the hash matches,
	// assigns the new id and calls derive. Readers never observe the
	// version without its changes.
	CommitVersion(ctx context.Context, draft domain.VersionDraft, derive ChangeDeriver) (*domain.Version, []domain.Change, error)

	// GetLatestVersion returns the most recent version for a source.
	// Returns nil, nil when the source has never been ingested.
	GetLatestVersion(ctx context.Context, sourceID string) (*domain.Version, error)

	// ListVersions returns version ids in creation order, oldest first.
	ListVersions(ctx context.Context, sourceID string) ([]string, error)

	// GetVersion retrieves a version by id.
	// Returns domain.ErrNotFound if unknown and *domain.CorruptionError
	// when the stored checksum no longer matches.
	GetVersion(ctx context.Context, versionID string) (*domain.Version, error)

	// VersionChecksum returns the stored and recomputed checksums.
	VersionChecksum(ctx context.Context, versionID string) (stored, computed string, err error)
}
