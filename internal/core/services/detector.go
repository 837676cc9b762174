package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
	"github.com/custodia-labs/docwatch/internal/core/ports/driving"
	"github.com/custodia-labs/docwatch/internal/logger"
)

// Ensure ChangeDetector implements the interface.
var _ driving.ChangeDetector = (*ChangeDetector)(nil)

// diffContext is the number of context lines in unified diffs.
const diffContext = 3

// ChangeDetector compares consecutive versions section by section.
type ChangeDetector struct {
	threshold  float64
	floor      float64
	rules      *RuleTable
	now        func() time.Time
	metrics    driven.MetricsRecorder
	similarity func(a, b string) float64
}

// DetectorOption configures a ChangeDetector.
type DetectorOption func(*ChangeDetector)

// WithSimilarityThreshold sets the secondary matching threshold.
func WithSimilarityThreshold(threshold float64) DetectorOption {
	return func(d *ChangeDetector) {
		if threshold > 0 && threshold <= 1 {
			d.threshold = threshold
		}
	}
}

// WithClassificationFloor sets the minimum confidence for a label.
func WithClassificationFloor(floor float64) DetectorOption {
	return func(d *ChangeDetector) {
		if floor >= 0 && floor < 1 {
			d.floor = floor
		}
	}
}

// WithRules replaces the classification rule table.
func WithRules(rules *RuleTable) DetectorOption {
	return func(d *ChangeDetector) {
		if rules != nil {
			d.rules = rules
		}
	}
}

// WithClock sets the time source for DetectedAt.
func WithClock(now func() time.Time) DetectorOption {
	return func(d *ChangeDetector) {
		if now != nil {
			d.now = now
		}
	}
}

// WithDetectorMetrics records skipped sections.
func WithDetectorMetrics(m driven.MetricsRecorder) DetectorOption {
	return func(d *ChangeDetector) {
		d.metrics = m
	}
}

// NewChangeDetector creates a detector with the given options.
func NewChangeDetector(opts ...DetectorOption) *ChangeDetector {
	d := &ChangeDetector{
		threshold:  domain.DefaultSimilarityThreshold,
		floor:      domain.DefaultClassificationFloor,
		rules:      DefaultRules(),
		now:        time.Now,
		similarity: dice,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Rules returns the detector's rule table.
func (d *ChangeDetector) Rules() *RuleTable {
	return d.rules
}

// sectionPair is a matched older/newer section.
type sectionPair struct {
	older, newer *domain.Section
}

// DetectChanges returns the changes from older to newer.
// Modified and added changes come first in new-version order, followed
// by removed changes in old-version order.
func (d *ChangeDetector) DetectChanges(older, newer *domain.Version) []domain.Change {
	if older == nil || newer == nil {
		return nil
	}
	if older.SourceID != newer.SourceID {
		logger.Warn("detect: versions %s and %s belong to different sources", older.ID, newer.ID)
		return nil
	}

	pairs, removed := d.match(older, newer)
	detectedAt := d.now().UTC()

	var changes []domain.Change
	for i := range newer.Sections {
		sec := &newer.Sections[i]
		var (
			c   *domain.Change
			err error
		)
		if prev, ok := pairs[sec.ID]; ok {
			if prev.Body == sec.Body {
				continue
			}
			c, err = d.build(older, newer, sectionPair{older: prev, newer: sec}, domain.ChangeModified, detectedAt)
		} else {
			c, err = d.build(older, newer, sectionPair{newer: sec}, domain.ChangeAdded, detectedAt)
		}
		if d.keep(newer.SourceID, sec.ID, c, err) {
			changes = append(changes, *c)
		}
	}
	for _, sec := range removed {
		c, err := d.build(older, newer, sectionPair{older: sec}, domain.ChangeRemoved, detectedAt)
		if d.keep(newer.SourceID, sec.ID, c, err) {
			changes = append(changes, *c)
		}
	}
	return changes
}

// Derive adapts the detector to a store's change deriver.
func (d *ChangeDetector) Derive(older, newer *domain.Version) ([]domain.Change, error) {
	if older != nil && newer != nil && older.SourceID != newer.SourceID {
		return nil, fmt.Errorf("%w: versions belong to sources %s and %s",
			domain.ErrInvalidInput, older.SourceID, newer.SourceID)
	}
	return d.DetectChanges(older, newer), nil
}

// match pairs new sections with old ones, first by id and then by body
// similarity. It returns old sections keyed by the new section id they
// matched, and the unmatched old sections in old order.
func (d *ChangeDetector) match(older, newer *domain.Version) (map[string]*domain.Section, []*domain.Section) {
	pairs := make(map[string]*domain.Section, len(newer.Sections))
	oldByID := make(map[string]*domain.Section, len(older.Sections))
	for i := range older.Sections {
		oldByID[older.Sections[i].ID] = &older.Sections[i]
	}

	usedOld := make(map[string]bool, len(older.Sections))
	var unmatchedNew []*domain.Section
	for i := range newer.Sections {
		sec := &newer.Sections[i]
		if prev, ok := oldByID[sec.ID]; ok {
			pairs[sec.ID] = prev
			usedOld[prev.ID] = true
			continue
		}
		unmatchedNew = append(unmatchedNew, sec)
	}
	var unmatchedOld []*domain.Section
	for i := range older.Sections {
		if !usedOld[older.Sections[i].ID] {
			unmatchedOld = append(unmatchedOld, &older.Sections[i])
		}
	}

	type candidate struct {
		older, newer *domain.Section
		score    float64
	}
	var candidates []candidate
	for _, o := range unmatchedOld {
		for _, n := range unmatchedNew {
			score, err := d.score(o, n)
			if err != nil {
				logger.Failure(string(domain.StageDetect), newer.SourceID, err,
					"old_section", o.ID, "new_section", n.ID)
				d.skipped()
				continue
			}
			if score >= d.threshold {
				candidates = append(candidates, candidate{older: o, newer: n, score: score})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.older.Position != b.older.Position {
			return a.older.Position < b.older.Position
		}
		return a.newer.Position < b.newer.Position
	})

	usedNew := make(map[string]bool, len(unmatchedNew))
	for _, c := range candidates {
		if usedOld[c.older.ID] || usedNew[c.newer.ID] {
			continue
		}
		usedOld[c.older.ID] = true
		usedNew[c.newer.ID] = true
		pairs[c.newer.ID] = c.older
	}

	var removed []*domain.Section
	for _, o := range unmatchedOld {
		if !usedOld[o.ID] {
			removed = append(removed, o)
		}
	}
	return pairs, removed
}

// score computes body similarity, converting a panic into an error.
func (d *ChangeDetector) score(a, b *domain.Section) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("similarity %s/%s: panic: %v", a.ID, b.ID, r)
		}
	}()
	return d.similarity(a.Body, b.Body), nil
}

// build assembles one change, converting a panic into an error.
func (d *ChangeDetector) build(older, newer *domain.Version, p sectionPair, t domain.ChangeType,
	detectedAt time.Time) (c *domain.Change, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("build %s change: panic: %v", t, r)
		}
	}()

	c = &domain.Change{
		SourceID:     newer.SourceID,
		OldVersionID: older.ID,
		NewVersionID: newer.ID,
		Type:         t,
		DetectedAt:   detectedAt,
	}

	var scan string
	switch t {
	case domain.ChangeModified:
		c.SectionID = p.newer.ID
		c.Heading = p.newer.Heading
		c.Level = p.newer.Level
		c.OldContent = p.older.Body
		c.NewContent = p.newer.Body
		c.ImpactScore = impactScore(t, c.Level, tokenDelta(c.OldContent, c.NewContent))
		scan = p.newer.Heading + "\n" + changedSpans(c.OldContent, c.NewContent)
	case domain.ChangeAdded:
		c.SectionID = p.newer.ID
		c.Heading = p.newer.Heading
		c.Level = p.newer.Level
		c.NewContent = evidence(p.newer)
		c.ImpactScore = impactScore(t, c.Level, 1)
		scan = p.newer.Text()
	case domain.ChangeRemoved:
		c.SectionID = p.older.ID
		c.Heading = p.older.Heading
		c.Level = p.older.Level
		c.OldContent = evidence(p.older)
		c.ImpactScore = impactScore(t, c.Level, 1)
		scan = p.older.Text()
	}

	c.ID = domain.ChangeID(older.ID, newer.ID, c.SectionID, t)
	c.Diff, err = unifiedDiff(c.OldContent, c.NewContent, older.ID, newer.ID)
	if err != nil {
		return nil, err
	}
	c.Classification, c.ConfidenceScore = d.rules.Classify(scan, d.floor)
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// keep logs and counts a failed section, returning whether c is usable.
func (d *ChangeDetector) keep(sourceID, sectionID string, c *domain.Change, err error) bool {
	if err != nil {
		logger.Failure(string(domain.StageDetect), sourceID, err, "section", sectionID)
		d.skipped()
		return false
	}
	return c != nil
}

func (d *ChangeDetector) skipped() {
	if d.metrics != nil {
		d.metrics.SectionSkipped(domain.StageDetect)
	}
}

// evidence is the content recorded for an added or removed section.
// A heading-only section is represented by its heading.
func evidence(s *domain.Section) string {
	if s.Body != "" {
		return s.Body
	}
	return s.Heading
}

// changedSpans returns the replaced, deleted and inserted token runs
// between older and newer.
func changedSpans(older, newer string) string {
	a, b := strings.Fields(older), strings.Fields(newer)
	var spans []string
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		switch op.Tag {
		case 'r':
			spans = append(spans, strings.Join(a[op.I1:op.I2], " "), strings.Join(b[op.J1:op.J2], " "))
		case 'd':
			spans = append(spans, strings.Join(a[op.I1:op.I2], " "))
		case 'i':
			spans = append(spans, strings.Join(b[op.J1:op.J2], " "))
		}
	}
	return strings.Join(spans, "\n")
}

// unifiedDiff renders older against newer, labelled with the version ids.
func unifiedDiff(older, newer, oldLabel, newLabel string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        diffLines(older),
		B:        diffLines(newer),
		FromFile: oldLabel,
		ToFile:   newLabel,
		Context:  diffContext,
	}
	out, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("unified diff: %w", err)
	}
	return out, nil
}

func diffLines(s string) []string {
	if s == "" {
		return nil
	}
	return difflib.SplitLines(s)
}
