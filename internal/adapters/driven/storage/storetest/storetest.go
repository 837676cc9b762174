// Package storetest holds behaviour tests shared by every VersionStore
// and ChangeStore implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
)

// Stores is one backend under test.
type Stores struct {
	Versions driven.VersionStore
	Changes  driven.ChangeStore
}

// Factory opens a fresh, empty backend.
type Factory func(t *testing.T) Stores

// Draft builds a version draft from heading/body pairs.
func Draft(sourceID string, pairs ...string) domain.VersionDraft {
	secs := make([]domain.Section, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		secs = append(secs, domain.Section{
			ID:       domain.SectionID(pairs[i], 0),
			Heading:  pairs[i],
			Body:     pairs[i+1],
			Level:    2,
			Position: len(secs),
		})
	}
	return domain.VersionDraft{
		SourceID:    sourceID,
		ContentHash: domain.ContentHash(secs),
		Sections:    secs,
		ExtractedAt: time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC),
		Metadata:    map[string]string{"title": sourceID},
	}
}

// ModifiedDeriver emits one modified change per section whose body
// differs from the previous version.
func ModifiedDeriver(detectedAt time.Time) driven.ChangeDeriver {
	return func(older, newer *domain.Version) ([]domain.Change, error) {
		if older == nil {
			return nil, nil
		}
		var out []domain.Change
		for _, sec := range newer.Sections {
			prev := older.SectionByID(sec.ID)
			if prev == nil || prev.Body == sec.Body {
				continue
			}
			out = append(out, domain.Change{
				ID:             domain.ChangeID(older.ID, newer.ID, sec.ID, domain.ChangeModified),
				SourceID:       newer.SourceID,
				OldVersionID:   older.ID,
				NewVersionID:   newer.ID,
				Type:           domain.ChangeModified,
				SectionID:      sec.ID,
				Heading:        sec.Heading,
				Level:          sec.Level,
				OldContent:     prev.Body,
				NewContent:     sec.Body,
				ImpactScore:    0.5,
				Classification: domain.ClassFeature,
				DetectedAt:     detectedAt,
			})
		}
		return out, nil
	}
}

// Run executes the shared behaviour tests against a backend.
func Run(t *testing.T, open Factory) {
	t.Run("FirstCommit", func(t *testing.T) { testFirstCommit(t, open(t)) })
	t.Run("DuplicateIsNoOp", func(t *testing.T) { testDuplicate(t, open(t)) })
	t.Run("CommitWithChanges", func(t *testing.T) { testCommitWithChanges(t, open(t)) })
	t.Run("DeriveFailureLeavesNoState", func(t *testing.T) { testDeriveFailure(t, open(t)) })
	t.Run("RejectsIncompleteChanges", func(t *testing.T) { testRejectsIncompleteChanges(t, open(t)) })
	t.Run("InvalidDraft", func(t *testing.T) { testInvalidDraft(t, open(t)) })
	t.Run("StoreVersion", func(t *testing.T) { testStoreVersion(t, open(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, open(t)) })
	t.Run("ChangesSince", func(t *testing.T) { testChangesSince(t, open(t)) })
	t.Run("ConcurrentSources", func(t *testing.T) { testConcurrentSources(t, open(t)) })
	t.Run("ConcurrentSameSource", func(t *testing.T) { testConcurrentSameSource(t, open(t)) })
	t.Run("SlowDeriveDoesNotBlockOtherSources", func(t *testing.T) { testSlowDerive(t, open(t)) })
	t.Run("ReadsAreCopies", func(t *testing.T) { testReadsAreCopies(t, open(t)) })
}

func testFirstCommit(t *testing.T, s Stores) {
	ctx := context.Background()

	latest, err := s.Versions.GetLatestVersion(ctx, "src")
	require.NoError(t, err)
	assert.Nil(t, latest)

	v, changes, err := s.Versions.CommitVersion(ctx, Draft("src", "Intro", "hello"), ModifiedDeriver(time.Now()))
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.NotEmpty(t, v.ID)
	assert.Positive(t, v.Sequence)

	got, err := s.Versions.GetVersion(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, v.ContentHash, got.ContentHash)
	assert.Equal(t, v.Sections, got.Sections)
	assert.Equal(t, v.Metadata, got.Metadata)
	assert.True(t, v.ExtractedAt.Equal(got.ExtractedAt))
	assert.Equal(t, v.Sequence, got.Sequence)

	latest, err = s.Versions.GetLatestVersion(ctx, "src")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, v.ID, latest.ID)

	stored, computed, err := s.Versions.VersionChecksum(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, stored, computed)
	assert.Len(t, stored, 64)
}

func testDuplicate(t *testing.T, s Stores) {
	ctx := context.Background()
	draft := Draft("src", "Intro", "hello")

	first, _, err := s.Versions.CommitVersion(ctx, draft, nil)
	require.NoError(t, err)

	again, changes, err := s.Versions.CommitVersion(ctx, draft, ModifiedDeriver(time.Now()))
	require.ErrorIs(t, err, domain.ErrDuplicateContent)
	assert.Empty(t, changes)
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)

	ids, err := s.Versions.ListVersions(ctx, "src")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, ids)
}

func testCommitWithChanges(t *testing.T, s Stores) {
	ctx := context.Background()
	derive := ModifiedDeriver(time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC))

	v1, _, err := s.Versions.CommitVersion(ctx, Draft("src", "Intro", "hello", "Pricing", "Free tier available"), derive)
	require.NoError(t, err)
	v2, changes, err := s.Versions.CommitVersion(ctx,
		Draft("src", "Intro", "hello", "Pricing", "Free tier available for 12 months"), derive)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Greater(t, v2.Sequence, v1.Sequence)

	ids, err := s.Versions.ListVersions(ctx, "src")
	require.NoError(t, err)
	assert.Equal(t, []string{v1.ID, v2.ID}, ids)

	between, err := s.Changes.ListChangesBetween(ctx, v1.ID, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, changes, between)

	bySource, err := s.Changes.ListChanges(ctx, "src")
	require.NoError(t, err)
	assert.Equal(t, changes, bySource)

	got, err := s.Changes.GetChange(ctx, changes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Free tier available", got.OldContent)
	assert.Equal(t, "Free tier available for 12 months", got.NewContent)

	byClass, byType, err := s.Changes.CountChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, byClass[domain.ClassFeature])
	assert.Equal(t, 1, byType[domain.ChangeModified])

	other, err := s.Changes.ListChanges(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testDeriveFailure(t *testing.T, s Stores) {
	ctx := context.Background()
	v1, _, err := s.Versions.CommitVersion(ctx, Draft("src", "Intro", "hello"), nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, _, err = s.Versions.CommitVersion(ctx, Draft("src", "Intro", "changed"),
		func(_, _ *domain.Version) ([]domain.Change, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	ids, err := s.Versions.ListVersions(ctx, "src")
	require.NoError(t, err)
	assert.Equal(t, []string{v1.ID}, ids)

	latest, err := s.Versions.GetLatestVersion(ctx, "src")
	require.NoError(t, err)
	assert.Equal(t, v1.ID, latest.ID)
}

func testRejectsIncompleteChanges(t *testing.T, s Stores) {
	ctx := context.Background()
	_, _, err := s.Versions.CommitVersion(ctx, Draft("src", "Intro", "hello"), nil)
	require.NoError(t, err)

	_, _, err = s.Versions.CommitVersion(ctx, Draft("src", "Intro", "changed"),
		func(older, newer *domain.Version) ([]domain.Change, error) {
			return []domain.Change{{
				ID:             "c-bad",
				SourceID:       newer.SourceID,
				OldVersionID:   older.ID,
				NewVersionID:   newer.ID,
				Type:           domain.ChangeModified,
				Classification: domain.ClassUnknown,
			}}, nil
		})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	ids, err := s.Versions.ListVersions(ctx, "src")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func testInvalidDraft(t *testing.T, s Stores) {
	ctx := context.Background()
	_, _, err := s.Versions.CommitVersion(ctx, domain.VersionDraft{ContentHash: "x"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	draft := Draft("src", "A", "a", "B", "b")
	draft.Sections[1].ID = draft.Sections[0].ID
	_, _, err = s.Versions.CommitVersion(ctx, draft, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func testStoreVersion(t *testing.T, s Stores) {
	ctx := context.Background()
	draft := Draft("src", "Intro", "hello")

	id1, err := s.Versions.StoreVersion(ctx, "src", draft.Sections, draft.ContentHash, draft.Metadata)
	require.NoError(t, err)
	id2, err := s.Versions.StoreVersion(ctx, "src", draft.Sections, draft.ContentHash, nil)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	ids, err := s.Versions.ListVersions(ctx, "src")
	require.NoError(t, err)
	assert.Equal(t, []string{id1, id2}, ids)

	latest, err := s.Versions.GetLatestVersion(ctx, "src")
	require.NoError(t, err)
	assert.Equal(t, id2, latest.ID)
	assert.False(t, latest.ExtractedAt.IsZero())
}

func testNotFound(t *testing.T, s Stores) {
	ctx := context.Background()
	_, err := s.Versions.GetVersion(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = s.Versions.VersionChecksum(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Changes.GetChange(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ids, err := s.Versions.ListVersions(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func testChangesSince(t *testing.T, s Stores) {
	ctx := context.Background()
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, src := range []string{"a", "b"} {
		_, _, err := s.Versions.CommitVersion(ctx, Draft(src, "Intro", "v1"), nil)
		require.NoError(t, err)
	}
	_, _, err := s.Versions.CommitVersion(ctx, Draft("a", "Intro", "v2"), ModifiedDeriver(early))
	require.NoError(t, err)
	_, _, err = s.Versions.CommitVersion(ctx, Draft("b", "Intro", "v2"), ModifiedDeriver(late))
	require.NoError(t, err)

	all, err := s.Changes.ListChangesSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].SourceID)
	assert.Equal(t, "b", all[1].SourceID)

	recent, err := s.Changes.ListChangesSince(ctx, late)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "b", recent[0].SourceID)
}

func testConcurrentSources(t *testing.T, s Stores) {
	ctx := context.Background()
	const sources = 60

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]bool)
	)
	errs := make(chan error, sources*2)
	for i := 0; i < sources; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := fmt.Sprintf("src-%02d", i)
			for _, body := range []string{"first", "second"} {
				v, _, err := s.Versions.CommitVersion(ctx, Draft(src, "Intro", body), ModifiedDeriver(time.Now()))
				if err != nil {
					errs <- err
					return
				}
				mu.Lock()
				ids[v.ID] = true
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, ids, sources*2)

	for i := 0; i < sources; i++ {
		list, err := s.Versions.ListVersions(ctx, fmt.Sprintf("src-%02d", i))
		require.NoError(t, err)
		assert.Len(t, list, 2)
	}
}

func testConcurrentSameSource(t *testing.T, s Stores) {
	ctx := context.Background()
	const writers = 20

	var wg sync.WaitGroup
	var mu sync.Mutex
	duplicates := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.Versions.CommitVersion(ctx, Draft("shared", "Intro", "same"), nil)
			if errors.Is(err, domain.ErrDuplicateContent) {
				mu.Lock()
				duplicates++
				mu.Unlock()
				return
			}
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ids, err := s.Versions.ListVersions(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Equal(t, writers-1, duplicates)
}

// testSlowDerive holds source a inside its deriver until source b has
// committed. A store that derives while holding a global write lock makes
// b wait until the deriver gives up.
func testSlowDerive(t *testing.T, s Stores) {
	ctx := context.Background()
	const patience = 5 * time.Second

	_, _, err := s.Versions.CommitVersion(ctx, Draft("a", "Intro", "one"), nil)
	require.NoError(t, err)

	deriving := make(chan struct{})
	bDone := make(chan struct{})
	sawB := make(chan bool, 1)
	slow := func(older, newer *domain.Version) ([]domain.Change, error) {
		close(deriving)
		select {
		case <-bDone:
			sawB <- true
		case <-time.After(patience):
			sawB <- false
		}
		return ModifiedDeriver(time.Now())(older, newer)
	}

	aErr := make(chan error, 1)
	go func() {
		_, _, err := s.Versions.CommitVersion(ctx, Draft("a", "Intro", "two"), slow)
		aErr <- err
	}()

	<-deriving
	start := time.Now()
	_, _, err = s.Versions.CommitVersion(ctx, Draft("b", "Intro", "one"), nil)
	close(bDone)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), patience)

	require.NoError(t, <-aErr)
	assert.True(t, <-sawB, "commit on b waited for a's deriver")

	ids, err := s.Versions.ListVersions(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func testReadsAreCopies(t *testing.T, s Stores) {
	ctx := context.Background()
	v, _, err := s.Versions.CommitVersion(ctx, Draft("src", "Intro", "hello"), nil)
	require.NoError(t, err)

	got, err := s.Versions.GetVersion(ctx, v.ID)
	require.NoError(t, err)
	got.Sections[0].Body = "mutated"
	got.Metadata["title"] = "mutated"

	again, err := s.Versions.GetVersion(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", again.Sections[0].Body)
	assert.Equal(t, "src", again.Metadata["title"])
}
