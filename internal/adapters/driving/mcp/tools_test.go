package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

var detected = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func sampleChanges() []domain.Change {
	return []domain.Change{
		{ID: "c-1", SourceID: "acme", Type: domain.ChangeModified, Classification: domain.ClassFeature,
			ImpactScore: 0.3, DetectedAt: detected},
		{ID: "c-2", SourceID: "acme", Type: domain.ChangeAdded, Classification: domain.ClassSecurity,
			ImpactScore: 0.9, DetectedAt: detected.Add(time.Minute)},
		{ID: "c-3", SourceID: "acme", Type: domain.ChangeRemoved, Classification: domain.ClassSecurity,
			ImpactScore: 0.5, DetectedAt: detected.Add(2 * time.Minute)},
	}
}

func newTestServer(t *testing.T, lineage *mockLineageService) *Server {
	t.Helper()
	server, err := NewServer(&Ports{Lineage: lineage, Ingest: &mockIngestor{}})
	require.NoError(t, err)
	return server
}

func TestServer_handleListChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("returns newest first", func(t *testing.T) {
		lineage := &mockLineageService{changes: sampleChanges()}
		server := newTestServer(t, lineage)

		_, output, err := server.handleListChanges(ctx, nil, ListChangesInput{SourceID: "acme"})

		require.NoError(t, err)
		assert.Equal(t, 3, output.Count)
		assert.Equal(t, "c-3", output.Changes[0].ID)
		assert.Equal(t, "c-1", output.Changes[2].ID)
		assert.Equal(t, "acme", lineage.gotSourceID)
		assert.True(t, lineage.gotSince.IsZero())
	})

	t.Run("filters by classification impact and limit", func(t *testing.T) {
		lineage := &mockLineageService{changes: sampleChanges()}
		server := newTestServer(t, lineage)

		_, output, err := server.handleListChanges(ctx, nil, ListChangesInput{
			Classification: "security",
			MinImpact:      0.4,
			Limit:          1,
		})

		require.NoError(t, err)
		require.Equal(t, 1, output.Count)
		assert.Equal(t, "c-3", output.Changes[0].ID)
	})

	t.Run("parses since", func(t *testing.T) {
		lineage := &mockLineageService{}
		server := newTestServer(t, lineage)

		_, output, err := server.handleListChanges(ctx, nil, ListChangesInput{Since: "2024-06-01T09:30:00Z"})

		require.NoError(t, err)
		assert.Equal(t, detected, lineage.gotSince)
		assert.NotNil(t, output.Changes)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		server := newTestServer(t, &mockLineageService{})

		_, _, err := server.handleListChanges(ctx, nil, ListChangesInput{Since: "yesterday"})
		assert.Error(t, err)

		_, _, err = server.handleListChanges(ctx, nil, ListChangesInput{Classification: "marketing"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("returns error on lineage failure", func(t *testing.T) {
		server := newTestServer(t, &mockLineageService{err: errors.New("store closed")})

		_, _, err := server.handleListChanges(ctx, nil, ListChangesInput{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "store closed")
	})
}

func TestServer_handleCompare(t *testing.T) {
	lineage := &mockLineageService{comparison: &domain.VersionComparison{
		OldVersionID: "v1", NewVersionID: "v3",
		Added: 1, Removed: 2, Modified: 3, Unchanged: 4,
		Changes: sampleChanges(),
	}}
	server := newTestServer(t, lineage)

	_, output, err := server.handleCompare(context.Background(), nil, CompareInput{OldVersionID: "v1", NewVersionID: "v3"})

	require.NoError(t, err)
	assert.Equal(t, 1, output.Added)
	assert.Equal(t, 2, output.Removed)
	assert.Equal(t, 3, output.Modified)
	assert.Equal(t, 4, output.Unchanged)
	assert.Len(t, output.Changes, 3)
}

func TestServer_handleSectionHistory(t *testing.T) {
	lineage := &mockLineageService{history: []domain.SectionRevision{
		{VersionID: "v1", Section: domain.Section{Heading: "Pricing", Body: "Free"}},
		{VersionID: "v2", Section: domain.Section{Heading: "Pricing", Body: "Paid"}, Changed: true},
	}}
	server := newTestServer(t, lineage)

	_, output, err := server.handleSectionHistory(context.Background(), nil,
		SectionHistoryInput{SourceID: "acme", SectionID: "s-1"})

	require.NoError(t, err)
	require.Len(t, output.Revisions, 2)
	assert.Equal(t, "Free", output.Revisions[0].Body)
	assert.True(t, output.Revisions[1].Changed)

	lineage.err = domain.ErrNotFound
	_, _, err = server.handleSectionHistory(context.Background(), nil, SectionHistoryInput{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestServer_handleVerify(t *testing.T) {
	lineage := &mockLineageService{report: &domain.IntegrityReport{
		VersionID: "v1",
		Problems:  []string{"checksum mismatch"},
	}}
	server := newTestServer(t, lineage)

	_, output, err := server.handleVerify(context.Background(), nil, VerifyInput{VersionID: "v1"})

	require.NoError(t, err)
	assert.False(t, output.Valid)
	assert.Equal(t, []string{"checksum mismatch"}, output.Problems)
}

func TestServer_handleIngest(t *testing.T) {
	ingest := &mockIngestor{outcome: &domain.IngestionOutcome{VersionID: "v2", Changes: sampleChanges()[:1]}}
	server, err := NewServer(&Ports{Lineage: &mockLineageService{}, Ingest: ingest})
	require.NoError(t, err)

	_, output, err := server.handleIngest(context.Background(), nil, IngestInput{
		SourceID: "acme", URI: "https://acme.example", Type: "md", Content: "# Pricing\nFree",
	})

	require.NoError(t, err)
	assert.Equal(t, "v2", output.VersionID)
	assert.Len(t, output.Changes, 1)
	assert.Equal(t, domain.SourceTypeMarkdown, ingest.got.Type)
	assert.Equal(t, []byte("# Pricing\nFree"), ingest.got.Content)

	_, _, err = server.handleIngest(context.Background(), nil, IngestInput{SourceID: "acme", Type: "rtf"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}
