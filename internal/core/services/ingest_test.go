package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docwatch/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
	"github.com/custodia-labs/docwatch/internal/normalisers"
)

type ingestFixture struct {
	coordinator *IngestionCoordinator
	sources     *memory.SourceStore
	versions    *memory.VersionStore
	publisher   *mockPublisher
	metrics     *mockMetrics
}

func newIngestFixture(t *testing.T, wrap func(driven.VersionStore) driven.VersionStore) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		sources:   memory.NewSourceStore(),
		versions:  memory.NewVersionStore(),
		publisher: newMockPublisher(),
		metrics:   newMockMetrics(),
	}
	var store driven.VersionStore = f.versions
	if wrap != nil {
		store = wrap(store)
	}
	f.coordinator = NewIngestionCoordinator(
		normalisers.NewDefaultRegistry(domain.DefaultMinExtractionLength),
		f.sources,
		store,
		newTestDetector(WithDetectorMetrics(f.metrics)),
		f.publisher,
		f.metrics,
	)
	return f
}

func pricingDoc(pricing string) domain.RawDocument {
	return domain.RawDocument{
		SourceID: "acme-pricing",
		URI:      "https://acme.example/pricing",
		Type:     domain.SourceTypeHTML,
		Content:  pricingPage(pricing),
	}
}

func TestIngest_FirstVersion(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx := context.Background()

	out, err := f.coordinator.Ingest(ctx, pricingDoc("Free tier available"))

	require.NoError(t, err)
	assert.False(t, out.IsDuplicate)
	assert.NotEmpty(t, out.VersionID)
	assert.Empty(t, out.Changes)

	src, err := f.sources.GetSource(ctx, "acme-pricing")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.example/pricing", src.URL)
	assert.Equal(t, domain.SourceTypeHTML, src.Type)

	v, err := f.versions.GetVersion(ctx, out.VersionID)
	require.NoError(t, err)
	assert.Len(t, v.Sections, 2)
	assert.Equal(t, domain.ContentHash(v.Sections), v.ContentHash)

	assert.Empty(t, f.publisher.published)
	assert.Equal(t, 1, f.metrics.ingestions)
}

func TestIngest_DuplicateIsNoOp(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx := context.Background()

	first, err := f.coordinator.Ingest(ctx, pricingDoc("Free tier available"))
	require.NoError(t, err)

	second, err := f.coordinator.Ingest(ctx, pricingDoc("Free tier available"))

	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, first.VersionID, second.VersionID)
	assert.Empty(t, second.Changes)

	ids, err := f.versions.ListVersions(ctx, "acme-pricing")
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	changes, err := f.versions.ListChanges(ctx, "acme-pricing")
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, 1, f.metrics.duplicates)
}

func TestIngest_PricingScenario(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx := context.Background()

	v1, err := f.coordinator.Ingest(ctx, pricingDoc("Free tier available"))
	require.NoError(t, err)

	v2, err := f.coordinator.Ingest(ctx, pricingDoc("Free tier available for 12 months"))
	require.NoError(t, err)

	require.Len(t, v2.Changes, 1)
	c := v2.Changes[0]
	assert.Equal(t, domain.ChangeModified, c.Type)
	assert.Equal(t, v1.VersionID, c.OldVersionID)
	assert.Equal(t, v2.VersionID, c.NewVersionID)
	assert.Equal(t, "acme-pricing", c.SourceID)
	assert.Equal(t, "Free tier available", c.OldContent)
	assert.Equal(t, "Free tier available for 12 months", c.NewContent)

	stored, err := f.versions.ListChangesBetween(ctx, v1.VersionID, v2.VersionID)
	require.NoError(t, err)
	assert.Equal(t, v2.Changes, stored)

	ids, err := f.versions.ListVersions(ctx, "acme-pricing")
	require.NoError(t, err)
	assert.Equal(t, []string{v1.VersionID, v2.VersionID}, ids)

	assert.Equal(t, v2.Changes, f.publisher.published[v2.VersionID])
	assert.Len(t, f.metrics.changes, 1)
}

func TestIngest_PublishFailureKeepsCommit(t *testing.T) {
	f := newIngestFixture(t, nil)
	f.publisher.err = errBoom
	ctx := context.Background()

	_, err := f.coordinator.Ingest(ctx, pricingDoc("Free tier available"))
	require.NoError(t, err)
	out, err := f.coordinator.Ingest(ctx, pricingDoc("Paid plans only"))

	require.NoError(t, err)
	assert.Len(t, out.Changes, 1)
	changes, err := f.versions.ListChanges(ctx, "acme-pricing")
	require.NoError(t, err)
	assert.Len(t, changes, 1)
}

func TestIngest_NilPublisherAndMetrics(t *testing.T) {
	coordinator := NewIngestionCoordinator(
		normalisers.NewDefaultRegistry(domain.DefaultMinExtractionLength),
		memory.NewSourceStore(), memory.NewVersionStore(), nil, nil, nil)
	ctx := context.Background()

	_, err := coordinator.Ingest(ctx, pricingDoc("Free tier available"))
	require.NoError(t, err)
	out, err := coordinator.Ingest(ctx, pricingDoc("Paid plans only"))

	require.NoError(t, err)
	assert.Len(t, out.Changes, 1)
}

// staleLatest hides the latest version so the duplicate is only seen
// inside CommitVersion, as when another writer commits first.
type staleLatest struct {
	driven.VersionStore
}

func (staleLatest) GetLatestVersion(context.Context, string) (*domain.Version, error) {
	return nil, nil
}

func TestIngest_DuplicateDetectedAtCommit(t *testing.T) {
	f := newIngestFixture(t, func(s driven.VersionStore) driven.VersionStore { return staleLatest{s} })
	ctx := context.Background()

	first, err := f.coordinator.Ingest(ctx, pricingDoc("Free tier available"))
	require.NoError(t, err)
	second, err := f.coordinator.Ingest(ctx, pricingDoc("Free tier available"))

	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, first.VersionID, second.VersionID)
}

func TestIngest_Failures(t *testing.T) {
	tests := []struct {
		name      string
		doc       domain.RawDocument
		wrap      func(driven.VersionStore) driven.VersionStore
		wantErr   error
		wantStage domain.Stage
	}{
		{
			name:      "missing source id",
			doc:       domain.RawDocument{Type: domain.SourceTypeText, Content: []byte("hello")},
			wantErr:   domain.ErrInvalidInput,
			wantStage: domain.StageRead,
		},
		{
			name:      "unsupported type",
			doc:       domain.RawDocument{SourceID: "s", Type: "rtf", Content: []byte("{\\rtf1}")},
			wantErr:   domain.ErrUnsupportedType,
			wantStage: domain.StageNormalise,
		},
		{
			name:      "corrupt pdf",
			doc:       domain.RawDocument{SourceID: "s", Type: domain.SourceTypePDF, Content: []byte("not a pdf at all")},
			wantErr:   domain.ErrParse,
			wantStage: domain.StageNormalise,
		},
		{
			name: "store failure",
			doc:  pricingDoc("Free tier available"),
			wrap: func(s driven.VersionStore) driven.VersionStore {
				return &failingVersionStore{VersionStore: s, commitErr: domain.ErrStorageWrite}
			},
			wantErr:   domain.ErrStorageWrite,
			wantStage: domain.StageStore,
		},
		{
			name: "latest read failure",
			doc:  pricingDoc("Free tier available"),
			wrap: func(s driven.VersionStore) driven.VersionStore {
				return &failingVersionStore{VersionStore: s, latestErr: errBoom}
			},
			wantErr:   errBoom,
			wantStage: domain.StageRead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t, tt.wrap)

			out, err := f.coordinator.Ingest(context.Background(), tt.doc)

			require.Error(t, err)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantStage, domain.StageFor(err))
			assert.Equal(t, 1, f.metrics.failures)
		})
	}
}

func TestIngest_CancelledBeforeStart(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.coordinator.Ingest(ctx, pricingDoc("Free tier available"))

	require.ErrorIs(t, err, context.Canceled)
	sources, err := f.sources.ListSources(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestIngest_ConcurrentSameSource(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx := context.Background()

	const writers = 10
	errs := make(chan error, writers)
	for range writers {
		go func() {
			_, err := f.coordinator.Ingest(ctx, pricingDoc("Free tier available"))
			errs <- err
		}()
	}
	for range writers {
		require.NoError(t, <-errs)
	}

	ids, err := f.versions.ListVersions(ctx, "acme-pricing")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestIngest_SourcesAreIndependent(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx := context.Background()

	a := pricingDoc("Free tier available")
	b := pricingDoc("Free tier available")
	b.SourceID = "other-pricing"

	outA, err := f.coordinator.Ingest(ctx, a)
	require.NoError(t, err)
	outB, err := f.coordinator.Ingest(ctx, b)
	require.NoError(t, err)

	assert.False(t, outB.IsDuplicate)
	assert.NotEqual(t, outA.VersionID, outB.VersionID)
}
