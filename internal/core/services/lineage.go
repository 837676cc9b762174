package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
	"github.com/custodia-labs/docwatch/internal/core/ports/driving"
)

// Ensure LineageService implements the interface.
var _ driving.LineageService = (*LineageService)(nil)

// LineageService answers audit queries over the version store.
type LineageService struct {
	sources  driven.SourceStore
	versions driven.VersionStore
	changes  driven.ChangeStore
	detector *ChangeDetector
}

// NewLineageService creates a new lineage service.
// The detector is used by Compare for version pairs that were never
// committed consecutively.
func NewLineageService(
	sources driven.SourceStore,
	versions driven.VersionStore,
	changes driven.ChangeStore,
	detector *ChangeDetector,
) *LineageService {
	if detector == nil {
		detector = NewChangeDetector()
	}
	return &LineageService{
		sources:  sources,
		versions: versions,
		changes:  changes,
		detector: detector,
	}
}

// Sources lists all known sources.
func (s *LineageService) Sources(ctx context.Context) ([]domain.Source, error) {
	return s.sources.ListSources(ctx)
}

// Versions returns every version of a source, oldest first.
func (s *LineageService) Versions(ctx context.Context, sourceID string) ([]domain.Version, error) {
	ids, err := s.versions.ListVersions(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	result := make([]domain.Version, 0, len(ids))
	for _, id := range ids {
		v, err := s.versions.GetVersion(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get version %s: %w", id, err)
		}
		result = append(result, *v)
	}
	return result, nil
}

// Version returns one version by id.
func (s *LineageService) Version(ctx context.Context, versionID string) (*domain.Version, error) {
	return s.versions.GetVersion(ctx, versionID)
}

// Changes returns changes detected at or after since, for one source or
// for all sources when sourceID is empty.
func (s *LineageService) Changes(ctx context.Context, sourceID string, since time.Time) ([]domain.Change, error) {
	if sourceID == "" {
		return s.changes.ListChangesSince(ctx, since)
	}
	all, err := s.changes.ListChanges(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Change, 0, len(all))
	for i := range all {
		if !all[i].DetectedAt.Before(since) {
			result = append(result, all[i])
		}
	}
	return result, nil
}

// SectionHistory traces one section id across the versions of a source.
// Versions without the section are skipped.
func (s *LineageService) SectionHistory(ctx context.Context, sourceID, sectionID string) ([]domain.SectionRevision, error) {
	versions, err := s.Versions(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	var (
		history  []domain.SectionRevision
		lastBody string
	)
	for i := range versions {
		sec := versions[i].SectionByID(sectionID)
		if sec == nil {
			continue
		}
		history = append(history, domain.SectionRevision{
			VersionID:   versions[i].ID,
			ExtractedAt: versions[i].ExtractedAt,
			Section:     *sec,
			Changed:     len(history) > 0 && sec.Body != lastBody,
		})
		lastBody = sec.Body
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("section %s in source %s: %w", sectionID, sourceID, domain.ErrNotFound)
	}
	return history, nil
}

// Compare summarises the differences between two versions of a source.
// Stored changes are used for consecutive pairs; other pairs are derived.
func (s *LineageService) Compare(ctx context.Context, oldVersionID, newVersionID string) (*domain.VersionComparison, error) {
	older, err := s.versions.GetVersion(ctx, oldVersionID)
	if err != nil {
		return nil, fmt.Errorf("get version %s: %w", oldVersionID, err)
	}
	newer, err := s.versions.GetVersion(ctx, newVersionID)
	if err != nil {
		return nil, fmt.Errorf("get version %s: %w", newVersionID, err)
	}
	if older.SourceID != newer.SourceID {
		return nil, fmt.Errorf("%w: versions %s and %s belong to different sources",
			domain.ErrInvalidInput, oldVersionID, newVersionID)
	}

	changes, err := s.changes.ListChangesBetween(ctx, oldVersionID, newVersionID)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		changes = s.detector.DetectChanges(older, newer)
	}

	cmp := &domain.VersionComparison{
		OldVersionID: oldVersionID,
		NewVersionID: newVersionID,
		Changes:      changes,
	}
	touched := make(map[string]bool, len(changes))
	for i := range changes {
		switch changes[i].Type {
		case domain.ChangeAdded:
			cmp.Added++
		case domain.ChangeRemoved:
			cmp.Removed++
		case domain.ChangeModified:
			cmp.Modified++
		}
		touched[changes[i].SectionID] = true
	}
	for i := range newer.Sections {
		if !touched[newer.Sections[i].ID] {
			cmp.Unchanged++
		}
	}
	return cmp, nil
}

// Stats returns storage statistics.
func (s *LineageService) Stats(ctx context.Context) (*domain.StoreStats, error) {
	sources, err := s.sources.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	stats := &domain.StoreStats{Sources: len(sources)}
	for _, src := range sources {
		ids, err := s.versions.ListVersions(ctx, src.ID)
		if err != nil {
			return nil, fmt.Errorf("list versions: %w", err)
		}
		stats.Versions += len(ids)
		for _, id := range ids {
			v, err := s.versions.GetVersion(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("get version %s: %w", id, err)
			}
			stats.Sections += len(v.Sections)
		}
	}

	stats.ByClassification, stats.ByType, err = s.changes.CountChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("count changes: %w", err)
	}
	for _, n := range stats.ByType {
		stats.Changes += n
	}
	return stats, nil
}

// VerifyVersion re-checks one stored version: checksum, content hash,
// section id uniqueness and position order. A checksum mismatch is
// reported, not returned as an error.
func (s *LineageService) VerifyVersion(ctx context.Context, versionID string) (*domain.IntegrityReport, error) {
	stored, computed, err := s.versions.VersionChecksum(ctx, versionID)
	if err != nil {
		return nil, err
	}
	report := &domain.IntegrityReport{VersionID: versionID}
	if stored != computed {
		report.Problems = append(report.Problems,
			fmt.Sprintf("checksum mismatch: stored %s, computed %s", stored, computed))
		return report, nil
	}

	v, err := s.versions.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if hash := domain.ContentHash(v.Sections); hash != v.ContentHash {
		report.Problems = append(report.Problems,
			fmt.Sprintf("content hash mismatch: stored %s, computed %s", v.ContentHash, hash))
	}
	if err := domain.ValidateSections(v.Sections); err != nil {
		report.Problems = append(report.Problems, err.Error())
	}
	report.Valid = len(report.Problems) == 0
	return report, nil
}
