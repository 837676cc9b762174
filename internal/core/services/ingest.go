package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
	"github.com/custodia-labs/docwatch/internal/core/ports/driving"
	"github.com/custodia-labs/docwatch/internal/logger"
)

// Ensure IngestionCoordinator implements the interface.
var _ driving.Ingestor = (*IngestionCoordinator)(nil)

// IngestionCoordinator turns raw content into stored versions and changes.
type IngestionCoordinator struct {
	registry  driven.NormaliserRegistry
	sources   driven.SourceStore
	versions  driven.VersionStore
	detector  *ChangeDetector
	publisher driven.ChangePublisher
	metrics   driven.MetricsRecorder
	now       func() time.Time
}

// NewIngestionCoordinator creates a new ingestion coordinator.
// The publisher and metrics recorder are optional - nil disables them.
func NewIngestionCoordinator(
	registry driven.NormaliserRegistry,
	sources driven.SourceStore,
	versions driven.VersionStore,
	detector *ChangeDetector,
	publisher driven.ChangePublisher,
	metrics driven.MetricsRecorder,
) *IngestionCoordinator {
	if detector == nil {
		detector = NewChangeDetector(WithDetectorMetrics(metrics))
	}
	return &IngestionCoordinator{
		registry:  registry,
		sources:   sources,
		versions:  versions,
		detector:  detector,
		publisher: publisher,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Ingest normalises raw content, skips it when it duplicates the latest
// version, and otherwise commits a new version with its changes.
// Once the commit starts it runs to completion even if ctx is cancelled.
func (c *IngestionCoordinator) Ingest(ctx context.Context, raw domain.RawDocument) (*domain.IngestionOutcome, error) {
	start := c.now()
	outcome, err := c.ingest(ctx, &raw)
	if c.metrics != nil {
		c.metrics.IngestionFinished(raw.Type, outcome, err, c.now().Sub(start))
	}
	if err != nil {
		logger.Failure(string(domain.StageFor(err)), raw.SourceID, err, "type", string(raw.Type), "uri", raw.URI)
		return nil, err
	}
	return outcome, nil
}

func (c *IngestionCoordinator) ingest(ctx context.Context, raw *domain.RawDocument) (*domain.IngestionOutcome, error) {
	if strings.TrimSpace(raw.SourceID) == "" {
		return nil, fmt.Errorf("%w: source id is required", domain.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 1. Normalise
	res, err := c.registry.Normalise(ctx, raw)
	if err != nil {
		return nil, err
	}

	// 2. Duplicate check against the latest version
	latest, err := c.versions.GetLatestVersion(ctx, raw.SourceID)
	if err != nil {
		return nil, fmt.Errorf("get latest version: %w", err)
	}
	if latest != nil && latest.ContentHash == res.ContentHash {
		logger.Debug("ingest %s: duplicate of %s", raw.SourceID, latest.ID)
		return &domain.IngestionOutcome{VersionID: latest.ID, IsDuplicate: true}, nil
	}

	// 3. Register the source on first sight
	if _, err := c.sources.EnsureSource(ctx, raw.Source()); err != nil {
		return nil, fmt.Errorf("register source: %w", err)
	}

	// 4. Commit version and changes atomically
	commitCtx := context.WithoutCancel(ctx)
	draft := domain.VersionDraft{
		SourceID:    raw.SourceID,
		ContentHash: res.ContentHash,
		Sections:    res.Sections,
		ExtractedAt: c.now().UTC(),
		Metadata:    domain.CloneMetadata(res.Metadata),
	}
	version, changes, err := c.versions.CommitVersion(commitCtx, draft, c.detector.Derive)
	if errors.Is(err, domain.ErrDuplicateContent) && version != nil {
		logger.Debug("ingest %s: duplicate of %s at commit", raw.SourceID, version.ID)
		return &domain.IngestionOutcome{VersionID: version.ID, IsDuplicate: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("commit version: %w", err)
	}

	for i := range changes {
		if c.metrics != nil {
			c.metrics.ChangeDetected(&changes[i])
		}
	}
	logger.Info("ingest %s: version %s, %d change(s)", raw.SourceID, version.ID, len(changes))

	// 5. Fan out; failures never affect stored state
	if c.publisher != nil && len(changes) > 0 {
		if err := c.publisher.Publish(commitCtx, version, changes); err != nil {
			logger.Warn("ingest %s: publish changes for %s: %v", raw.SourceID, version.ID, err)
		}
	}

	return &domain.IngestionOutcome{VersionID: version.ID, Changes: changes}, nil
}
