package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// mockLineageService is a mock implementation of driving.LineageService.
type mockLineageService struct {
	sources    []domain.Source
	versions   []domain.Version
	version    *domain.Version
	changes    []domain.Change
	history    []domain.SectionRevision
	comparison *domain.VersionComparison
	stats      *domain.StoreStats
	report     *domain.IntegrityReport
	err        error

	gotSourceID string
	gotSince    time.Time
}

func (m *mockLineageService) Sources(_ context.Context) ([]domain.Source, error) {
	return m.sources, m.err
}

func (m *mockLineageService) Versions(_ context.Context, sourceID string) ([]domain.Version, error) {
	m.gotSourceID = sourceID
	return m.versions, m.err
}

func (m *mockLineageService) Version(_ context.Context, _ string) (*domain.Version, error) {
	return m.version, m.err
}

func (m *mockLineageService) Changes(_ context.Context, sourceID string, since time.Time) ([]domain.Change, error) {
	m.gotSourceID = sourceID
	m.gotSince = since
	return m.changes, m.err
}

func (m *mockLineageService) SectionHistory(_ context.Context, _, _ string) ([]domain.SectionRevision, error) {
	return m.history, m.err
}

func (m *mockLineageService) Compare(_ context.Context, _, _ string) (*domain.VersionComparison, error) {
	return m.comparison, m.err
}

func (m *mockLineageService) Stats(_ context.Context) (*domain.StoreStats, error) {
	return m.stats, m.err
}

func (m *mockLineageService) VerifyVersion(_ context.Context, _ string) (*domain.IntegrityReport, error) {
	return m.report, m.err
}

// mockIngestor is a mock implementation of driving.Ingestor.
type mockIngestor struct {
	outcome *domain.IngestionOutcome
	err     error
	got     domain.RawDocument
}

func (m *mockIngestor) Ingest(_ context.Context, raw domain.RawDocument) (*domain.IngestionOutcome, error) {
	m.got = raw
	return m.outcome, m.err
}
