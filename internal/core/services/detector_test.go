package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/normalisers/html"
)

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func newTestDetector(opts ...DetectorOption) *ChangeDetector {
	opts = append([]DetectorOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewChangeDetector(opts...)
}

func pricingPage(pricing string) []byte {
	return []byte(`<html><head><title>Acme</title></head><body>
<h1>Overview</h1>
<p>Acme is a platform for teams.</p>
<h2>Pricing</h2>
<p>` + pricing + `</p>
</body></html>`)
}

func htmlVersion(t *testing.T, id, pricing string) *domain.Version {
	t.Helper()
	res, err := html.New().Normalise(context.Background(), &domain.RawDocument{
		SourceID: "src-1",
		URI:      "https://acme.example/pricing",
		Type:     domain.SourceTypeHTML,
		Content:  pricingPage(pricing),
	})
	require.NoError(t, err)
	draft := domain.VersionDraft{
		SourceID:    "src-1",
		ContentHash: res.ContentHash,
		Sections:    res.Sections,
		ExtractedAt: fixedNow,
	}
	return draft.Version(id)
}

func TestNewChangeDetector_Defaults(t *testing.T) {
	d := NewChangeDetector()
	assert.Equal(t, domain.DefaultSimilarityThreshold, d.threshold)
	assert.Equal(t, domain.DefaultClassificationFloor, d.floor)
	assert.NotNil(t, d.Rules())
}

func TestNewChangeDetector_IgnoresInvalidOptions(t *testing.T) {
	d := NewChangeDetector(
		WithSimilarityThreshold(0),
		WithSimilarityThreshold(1.5),
		WithClassificationFloor(1),
		WithRules(nil),
		WithClock(nil),
	)
	assert.Equal(t, domain.DefaultSimilarityThreshold, d.threshold)
	assert.Equal(t, domain.DefaultClassificationFloor, d.floor)
	assert.NotNil(t, d.rules)
	assert.NotNil(t, d.now)
}

func TestDetectChanges_PricingScenario(t *testing.T) {
	v1 := htmlVersion(t, "v1", "Free tier available")
	v2 := htmlVersion(t, "v2", "Free tier available for 12 months")

	changes := newTestDetector().DetectChanges(v1, v2)

	require.Len(t, changes, 1)
	c := changes[0]
	assert.Equal(t, domain.ChangeModified, c.Type)
	assert.Equal(t, domain.SectionID("Pricing", 0), c.SectionID)
	assert.Equal(t, "Free tier available", c.OldContent)
	assert.Equal(t, "Free tier available for 12 months", c.NewContent)
	assert.Equal(t, "Pricing", c.Heading)
	assert.Equal(t, 2, c.Level)
	assert.Equal(t, "v1", c.OldVersionID)
	assert.Equal(t, "v2", c.NewVersionID)
	assert.Equal(t, "src-1", c.SourceID)
	assert.Equal(t, fixedNow, c.DetectedAt)
	assert.Equal(t, domain.ChangeID("v1", "v2", c.SectionID, domain.ChangeModified), c.ID)
	assert.Contains(t, c.Diff, "--- v1")
	assert.Contains(t, c.Diff, "+++ v2")
	assert.Contains(t, c.Diff, "-Free tier available\n")
	assert.Contains(t, c.Diff, "+Free tier available for 12 months\n")
	assert.NoError(t, c.Validate())
}

func TestDetectChanges_FirstVersionHasNoChanges(t *testing.T) {
	v := versionOf("v1", section("Intro", "Hello world", 1), section("Setup", "Run the installer", 2))
	assert.Empty(t, newTestDetector().DetectChanges(nil, v))

	empty := versionOf("v2")
	assert.Empty(t, newTestDetector().DetectChanges(nil, empty))
}

func TestDetectChanges_NilNewVersion(t *testing.T) {
	v := versionOf("v1", section("Intro", "Hello world", 1))
	assert.Empty(t, newTestDetector().DetectChanges(v, nil))
}

func TestDetectChanges_IdenticalVersions(t *testing.T) {
	v1 := versionOf("v1", section("Intro", "Hello world", 1), section("Setup", "Run the installer", 2))
	v2 := versionOf("v2", section("Intro", "Hello world", 1), section("Setup", "Run the installer", 2))
	assert.Empty(t, newTestDetector().DetectChanges(v1, v2))
}

func TestDetectChanges_DifferentSources(t *testing.T) {
	v1 := versionOf("v1", section("Intro", "Hello world", 1))
	v2 := versionOf("v2", section("Intro", "Goodbye world", 1))
	v2.SourceID = "src-2"

	assert.Empty(t, newTestDetector().DetectChanges(v1, v2))

	_, err := newTestDetector().Derive(v1, v2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDetectChanges_AddedAndRemoved(t *testing.T) {
	v1 := versionOf("v1",
		section("Intro", "Hello world", 1),
		section("Legacy API", "Call the v1 endpoint", 2),
	)
	v2 := versionOf("v2",
		section("Intro", "Hello world", 1),
		section("Support", "Email the support team", 2),
	)

	changes := newTestDetector().DetectChanges(v1, v2)
	require.Len(t, changes, 2)

	added := changes[0]
	assert.Equal(t, domain.ChangeAdded, added.Type)
	assert.Equal(t, domain.SectionID("Support", 0), added.SectionID)
	assert.Empty(t, added.OldContent)
	assert.Equal(t, "Email the support team", added.NewContent)
	assert.InDelta(t, 0.81, added.ImpactScore, 1e-9)

	removed := changes[1]
	assert.Equal(t, domain.ChangeRemoved, removed.Type)
	assert.Equal(t, domain.SectionID("Legacy API", 0), removed.SectionID)
	assert.Equal(t, "Call the v1 endpoint", removed.OldContent)
	assert.Empty(t, removed.NewContent)
	assert.InDelta(t, 0.9, removed.ImpactScore, 1e-9)
	assert.Contains(t, removed.Diff, "-Call the v1 endpoint")
}

func TestDetectChanges_HeadingOnlySectionUsesHeadingAsEvidence(t *testing.T) {
	v1 := versionOf("v1", section("Intro", "Hello world", 1))
	v2 := versionOf("v2", section("Intro", "Hello world", 1), section("Appendix", "", 2))

	changes := newTestDetector().DetectChanges(v1, v2)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.ChangeAdded, changes[0].Type)
	assert.Equal(t, "Appendix", changes[0].NewContent)
}

func TestDetectChanges_RenamedHeadingMatchesBySimilarity(t *testing.T) {
	v1 := versionOf("v1", section("Pricing", "Free tier available for all teams with unlimited projects", 2))
	v2 := versionOf("v2", section("Plans and Pricing", "Free tier available for all teams with unlimited projects and users", 2))

	changes := newTestDetector().DetectChanges(v1, v2)
	require.Len(t, changes, 1)
	c := changes[0]
	assert.Equal(t, domain.ChangeModified, c.Type)
	assert.Equal(t, domain.SectionID("Plans and Pricing", 0), c.SectionID)
	assert.Equal(t, "Plans and Pricing", c.Heading)
	assert.Equal(t, "Free tier available for all teams with unlimited projects", c.OldContent)
}

func TestDetectChanges_RenamedHeadingWithSameBody(t *testing.T) {
	v1 := versionOf("v1", section("Pricing", "Free tier available for all teams", 2))
	v2 := versionOf("v2", section("Plans", "Free tier available for all teams", 2))

	assert.Empty(t, newTestDetector().DetectChanges(v1, v2))
}

func TestDetectChanges_DissimilarSectionsAreNotMatched(t *testing.T) {
	v1 := versionOf("v1", section("Pricing", "Free tier available", 2))
	v2 := versionOf("v2", section("Roadmap", "Mobile apps ship next quarter", 2))

	changes := newTestDetector().DetectChanges(v1, v2)
	require.Len(t, changes, 2)
	assert.Equal(t, domain.ChangeAdded, changes[0].Type)
	assert.Equal(t, domain.ChangeRemoved, changes[1].Type)
}

func TestDetectChanges_GreedyMatchingPrefersBestScore(t *testing.T) {
	v1 := versionOf("v1",
		section("A", "alpha beta gamma delta epsilon zeta", 2),
		section("B", "alpha beta gamma delta epsilon eta theta", 2),
	)
	v2 := versionOf("v2", section("C", "alpha beta gamma delta epsilon eta theta iota", 2))

	changes := newTestDetector().DetectChanges(v1, v2)
	require.Len(t, changes, 2)
	assert.Equal(t, domain.ChangeModified, changes[0].Type)
	assert.Equal(t, "alpha beta gamma delta epsilon eta theta", changes[0].OldContent)
	assert.Equal(t, domain.ChangeRemoved, changes[1].Type)
	assert.Equal(t, domain.SectionID("A", 0), changes[1].SectionID)
}

func TestDetectChanges_RepeatedHeadings(t *testing.T) {
	v1 := versionOf("v1",
		section("Examples", "first example", 2),
		section("Examples", "second example", 2),
	)
	v2 := versionOf("v2",
		section("Examples", "first example", 2),
		section("Examples", "second example updated", 2),
	)

	changes := newTestDetector().DetectChanges(v1, v2)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.SectionID("Examples", 1), changes[0].SectionID)
}

func TestDetectChanges_Ordering(t *testing.T) {
	v1 := versionOf("v1",
		section("Gone first", "removed one", 2),
		section("Keep", "same body", 2),
		section("Gone second", "removed two", 2),
		section("Edit", "old text", 2),
	)
	v2 := versionOf("v2",
		section("Edit", "new text", 2),
		section("Keep", "same body", 2),
		section("Fresh", "brand new content", 2),
	)

	changes := newTestDetector().DetectChanges(v1, v2)
	require.Len(t, changes, 4)
	assert.Equal(t, domain.ChangeModified, changes[0].Type)
	assert.Equal(t, domain.ChangeAdded, changes[1].Type)
	assert.Equal(t, domain.ChangeRemoved, changes[2].Type)
	assert.Equal(t, domain.SectionID("Gone first", 0), changes[2].SectionID)
	assert.Equal(t, domain.ChangeRemoved, changes[3].Type)
	assert.Equal(t, domain.SectionID("Gone second", 0), changes[3].SectionID)
}

func TestDetectChanges_ImpactMonotonicity(t *testing.T) {
	words := strings.Fields("one two three four five six seven eight nine ten " +
		"eleven twelve thirteen fourteen fifteen sixteen seventeen eighteen nineteen twenty")
	require.Len(t, words, 20)

	edit := func(n int) string {
		out := append([]string(nil), words...)
		for i := 0; i < n; i++ {
			out[i] = "changed"
		}
		return strings.Join(out, " ")
	}

	base := versionOf("v1", section("Limits", strings.Join(words, " "), 2))
	small := versionOf("v2", section("Limits", edit(1), 2))
	large := versionOf("v3", section("Limits", edit(10), 2))

	d := newTestDetector()
	smallChanges := d.DetectChanges(base, small)
	largeChanges := d.DetectChanges(base, large)
	require.Len(t, smallChanges, 1)
	require.Len(t, largeChanges, 1)

	assert.GreaterOrEqual(t, largeChanges[0].ImpactScore, smallChanges[0].ImpactScore)
	assert.Greater(t, largeChanges[0].ImpactScore, smallChanges[0].ImpactScore)
}

func TestDetectChanges_EvidenceCompleteness(t *testing.T) {
	v1 := versionOf("v1",
		section("", "Preamble text", 0),
		section("Install", "Download the binary", 2),
		section("Old", "Obsolete notes", 3),
	)
	v2 := versionOf("v2",
		section("", "Preamble text changed", 0),
		section("Install", "Download the signed binary", 2),
		section("New", "", 3),
	)

	changes := newTestDetector().DetectChanges(v1, v2)
	require.NotEmpty(t, changes)
	for _, c := range changes {
		assert.NotEmpty(t, c.OldVersionID)
		assert.NotEmpty(t, c.NewVersionID)
		assert.True(t, c.OldContent != "" || c.NewContent != "", "change %s has no content", c.ID)
		assert.NoError(t, c.Validate())
		assert.GreaterOrEqual(t, c.ImpactScore, 0.0)
		assert.LessOrEqual(t, c.ImpactScore, 1.0)
	}
}

func TestDetectChanges_Deterministic(t *testing.T) {
	v1 := versionOf("v1", section("Intro", "Hello world", 1), section("Setup", "Run it", 2))
	v2 := versionOf("v2", section("Intro", "Hello there world", 1), section("Usage", "Call it", 2))

	d := newTestDetector()
	assert.Equal(t, d.DetectChanges(v1, v2), d.DetectChanges(v1, v2))
}

func TestDetectChanges_Classification(t *testing.T) {
	tests := []struct {
		name    string
		heading string
		oldBody string
		newBody string
		want    domain.Classification
	}{
		{
			name:    "security advisory",
			heading: "Authentication",
			oldBody: "Users log in with a password.",
			newBody: "Users log in with a password. Fixes CVE-2024-1234 vulnerability.",
			want:    domain.ClassSecurity,
		},
		{
			name:    "deprecation notice",
			heading: "Legacy endpoints",
			oldBody: "The v1 endpoint is available.",
			newBody: "The v1 endpoint is deprecated and will be removed in June.",
			want:    domain.ClassDeprecation,
		},
		{
			name:    "bugfix",
			heading: "Release notes",
			oldBody: "Exports are slow.",
			newBody: "Exports are slow. Fixed a crash when exporting large files.",
			want:    domain.ClassBugfix,
		},
		{
			name:    "no signal",
			heading: "Colours",
			oldBody: "The sky is blue",
			newBody: "The sky is green",
			want:    domain.ClassUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v1 := versionOf("v1", section(tt.heading, tt.oldBody, 2))
			v2 := versionOf("v2", section(tt.heading, tt.newBody, 2))

			changes := newTestDetector().DetectChanges(v1, v2)
			require.Len(t, changes, 1)
			assert.Equal(t, tt.want, changes[0].Classification)
			if tt.want == domain.ClassUnknown {
				assert.Less(t, changes[0].ConfidenceScore, domain.DefaultClassificationFloor)
			} else {
				assert.GreaterOrEqual(t, changes[0].ConfidenceScore, domain.DefaultClassificationFloor)
			}
		})
	}
}

func TestDetectChanges_ClassifiesOnlyChangedSpans(t *testing.T) {
	body := "Rotate your password regularly and enable encryption."
	v1 := versionOf("v1", section("Tips", body, 2))
	v2 := versionOf("v2", section("Tips", body+" See the guide.", 2))

	changes := newTestDetector().DetectChanges(v1, v2)
	require.Len(t, changes, 1)
	assert.NotEqual(t, domain.ClassSecurity, changes[0].Classification)
}

func TestDetectChanges_SimilarityPanicIsIsolated(t *testing.T) {
	metrics := newMockMetrics()
	d := newTestDetector(WithDetectorMetrics(metrics))
	d.similarity = func(a, b string) float64 {
		if strings.Contains(a, "boom") {
			panic("similarity exploded")
		}
		return dice(a, b)
	}

	v1 := versionOf("v1",
		section("Broken", "boom goes the section", 2),
		section("Stable", "stable text", 2),
	)
	v2 := versionOf("v2",
		section("Replacement", "boom goes the section again", 2),
		section("Stable", "stable text revised", 2),
	)

	changes := d.DetectChanges(v1, v2)
	require.Len(t, changes, 3)
	assert.Equal(t, domain.ChangeAdded, changes[0].Type)
	assert.Equal(t, domain.ChangeModified, changes[1].Type)
	assert.Equal(t, domain.SectionID("Stable", 0), changes[1].SectionID)
	assert.Equal(t, domain.ChangeRemoved, changes[2].Type)
	assert.Equal(t, 1, metrics.skipped[domain.StageDetect])
}

func TestDetectChanges_BuildPanicSkipsSection(t *testing.T) {
	metrics := newMockMetrics()
	d := newTestDetector(WithDetectorMetrics(metrics))
	d.rules = nil

	v1 := versionOf("v1", section("Intro", "Hello world", 1), section("Setup", "Run it", 2))
	v2 := versionOf("v2", section("Intro", "Hello there world", 1), section("Setup", "Run it now", 2))

	var changes []domain.Change
	assert.NotPanics(t, func() { changes = d.DetectChanges(v1, v2) })
	assert.Empty(t, changes)
	assert.Equal(t, 2, metrics.skipped[domain.StageDetect])
}

func TestDerive(t *testing.T) {
	v1 := versionOf("v1", section("Intro", "Hello world", 1))
	v2 := versionOf("v2", section("Intro", "Hello there world", 1))

	changes, err := newTestDetector().Derive(v1, v2)
	require.NoError(t, err)
	assert.Len(t, changes, 1)

	changes, err = newTestDetector().Derive(nil, v2)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestChangedSpans(t *testing.T) {
	assert.Equal(t, "for 12 months", changedSpans("Free tier available", "Free tier available for 12 months"))
	assert.Equal(t, "blue\ngreen", changedSpans("The sky is blue", "The sky is green"))
	assert.Equal(t, "", changedSpans("same", "same"))
}

func TestUnifiedDiff(t *testing.T) {
	diff, err := unifiedDiff("line one\nline two", "line one\nline three", "v1", "v2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(diff, "--- v1\n+++ v2\n"))
	assert.Contains(t, diff, " line one\n")
	assert.Contains(t, diff, "-line two\n")
	assert.Contains(t, diff, "+line three\n")

	diff, err = unifiedDiff("", "added", "v1", "v2")
	require.NoError(t, err)
	assert.Contains(t, diff, "+added\n")
}
