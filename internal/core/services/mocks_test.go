package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
)

// mockMetrics implements driven.MetricsRecorder for testing.
type mockMetrics struct {
	mu         sync.Mutex
	ingestions int
	failures   int
	duplicates int
	changes    []domain.Change
	skipped    map[domain.Stage]int
}

var _ driven.MetricsRecorder = (*mockMetrics)(nil)

func newMockMetrics() *mockMetrics {
	return &mockMetrics{skipped: make(map[domain.Stage]int)}
}

func (m *mockMetrics) IngestionFinished(_ domain.SourceType, outcome *domain.IngestionOutcome, err error, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingestions++
	if err != nil {
		m.failures++
		return
	}
	if outcome.IsDuplicate {
		m.duplicates++
	}
}

func (m *mockMetrics) ChangeDetected(change *domain.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, *change)
}

func (m *mockMetrics) SectionSkipped(stage domain.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[stage]++
}

// mockPublisher implements driven.ChangePublisher for testing.
type mockPublisher struct {
	mu        sync.Mutex
	published map[string][]domain.Change
	err       error
	closed    bool
}

var _ driven.ChangePublisher = (*mockPublisher)(nil)

func newMockPublisher() *mockPublisher {
	return &mockPublisher{published: make(map[string][]domain.Change)}
}

func (m *mockPublisher) Publish(_ context.Context, version *domain.Version, changes []domain.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published[version.ID] = append(m.published[version.ID], changes...)
	return nil
}

func (m *mockPublisher) Close() error {
	m.closed = true
	return nil
}

// mockRuleSource implements driven.RuleSource for testing.
type mockRuleSource struct {
	rules   []driven.RuleSpec
	replace bool
	err     error
}

func (m *mockRuleSource) LoadRules() ([]driven.RuleSpec, bool, error) {
	return m.rules, m.replace, m.err
}

// failingVersionStore wraps a VersionStore and fails selected calls.
type failingVersionStore struct {
	driven.VersionStore
	commitErr error
	latestErr error
	commits   int
}

func (f *failingVersionStore) CommitVersion(ctx context.Context, draft domain.VersionDraft,
	derive driven.ChangeDeriver) (*domain.Version, []domain.Change, error) {
	f.commits++
	if f.commitErr != nil {
		return nil, nil, f.commitErr
	}
	return f.VersionStore.CommitVersion(ctx, draft, derive)
}

func (f *failingVersionStore) GetLatestVersion(ctx context.Context, sourceID string) (*domain.Version, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.VersionStore.GetLatestVersion(ctx, sourceID)
}

var errBoom = errors.New("boom")

// section builds a section with only heading, body and level set.
func section(heading, body string, level int) domain.Section {
	return domain.Section{Heading: heading, Body: body, Level: level}
}

// versionOf assembles a version, assigning ids and positions the way
// the normalisers do.
func versionOf(id string, secs ...domain.Section) *domain.Version {
	ordinals := make(map[string]int)
	out := make([]domain.Section, len(secs))
	for i, s := range secs {
		key := strings.ToLower(s.Heading)
		s.ID = domain.SectionID(key, ordinals[key])
		ordinals[key]++
		s.Position = i
		out[i] = s
	}
	return &domain.Version{
		ID:          id,
		SourceID:    "src-1",
		ContentHash: domain.ContentHash(out),
		Sections:    out,
		ExtractedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}
