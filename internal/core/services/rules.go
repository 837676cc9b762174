package services

import (
	"fmt"
	"math"
	"regexp"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
	"github.com/custodia-labs/docwatch/internal/core/ports/driving"
)

// Ensure RuleTable implements the interface.
var _ driving.RuleCatalog = (*RuleTable)(nil)

// maxHitsPerRule caps how many matches of one rule count towards a score.
const maxHitsPerRule = 3

// Rule is one weighted pattern voting for a classification.
type Rule struct {
	Classification domain.Classification
	Pattern        *regexp.Regexp
	Weight         float64
}

// RuleTable is an ordered, inspectable classification rule set.
// Table order breaks score ties.
type RuleTable struct {
	rules []Rule
}

// defaultRuleSpecs is the built-in rule table.
var defaultRuleSpecs = []driven.RuleSpec{
	{Classification: domain.ClassSecurity, Pattern: `\bcve-\d{4}-\d{4,}\b`, Weight: 1.5},
	{Classification: domain.ClassSecurity, Pattern: `\b(security (advisory|fix|update|patch)|vulnerabilit(y|ies)|exploit(s|ed|able)?|zero[- ]day)\b`, Weight: 1.0},
	{Classification: domain.ClassSecurity, Pattern: `\b(xss|csrf|sql injection|remote code execution|privilege escalation|data breach)\b`, Weight: 1.0},
	{Classification: domain.ClassSecurity, Pattern: `\b(security|authenticat\w*|authori[sz]ation|encrypt\w*|passwords?|tls|ssl|mfa|2fa|permissions?)\b`, Weight: 0.4},

	{Classification: domain.ClassDeprecation, Pattern: `\bdeprecat\w*\b`, Weight: 1.2},
	{Classification: domain.ClassDeprecation, Pattern: `\b(end[- ]of[- ]life|eol|sunset(ting|ted)?|no longer (be )?supported|will be removed|discontinu\w*|retir(e|ed|ing))\b`, Weight: 0.9},
	{Classification: domain.ClassDeprecation, Pattern: `\b(obsolete|legacy|removed in|superseded)\b`, Weight: 0.4},

	{Classification: domain.ClassBugfix, Pattern: `\b(bug ?fix(es)?|hotfix(es)?|fixed|fixes|regression)\b`, Weight: 1.0},
	{Classification: domain.ClassBugfix, Pattern: `\b(bugs?|crash(es|ed)?|resolved?|workaround|incorrect(ly)?|patch(ed)?)\b`, Weight: 0.4},

	{Classification: domain.ClassFeature, Pattern: `\b(new feature|introduc(e|es|ed|ing)|now (supports?|available)|launch(es|ed)?|added support)\b`, Weight: 1.0},
	{Classification: domain.ClassFeature, Pattern: `\b(new|adds?|added|support for|enhance\w*|improve\w*|beta|preview|release[sd]?)\b`, Weight: 0.35},

	{Classification: domain.ClassConfiguration, Pattern: `\b(configuration|config|environment variables?|default (value|setting)s?|settings?)\b`, Weight: 0.8},
	{Classification: domain.ClassConfiguration, Pattern: `\b(parameters?|flags?|options?|timeouts?|limits?|quotas?|thresholds?)\b|\.(ya?ml|toml|ini|json)\b`, Weight: 0.4},

	{Classification: domain.ClassDocumentation, Pattern: `\b(typos?|spelling|grammar|wording|reworded|clarif\w*|formatting)\b`, Weight: 1.0},
	{Classification: domain.ClassDocumentation, Pattern: `\b(documentation|docs|examples?|tutorials?|guides?|readme|faq)\b`, Weight: 0.4},
}

// DefaultRules returns the built-in rule table.
func DefaultRules() *RuleTable {
	t, err := NewRuleTable(defaultRuleSpecs)
	if err != nil {
		panic(fmt.Sprintf("default rules: %v", err))
	}
	return t
}

// NewRuleTable compiles rule specs. Patterns match case-insensitively.
func NewRuleTable(specs []driven.RuleSpec) (*RuleTable, error) {
	t := &RuleTable{rules: make([]Rule, 0, len(specs))}
	for i, spec := range specs {
		if !spec.Classification.IsValid() || spec.Classification == domain.ClassUnknown {
			return nil, fmt.Errorf("%w: rule %d: classification %q", domain.ErrInvalidInput, i, spec.Classification)
		}
		if spec.Weight <= 0 {
			return nil, fmt.Errorf("%w: rule %d: weight must be positive", domain.ErrInvalidInput, i)
		}
		re, err := regexp.Compile("(?i)" + spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d: %v", domain.ErrInvalidInput, i, err)
		}
		t.rules = append(t.rules, Rule{Classification: spec.Classification, Pattern: re, Weight: spec.Weight})
	}
	return t, nil
}

// LoadRuleTable builds the effective table from the built-in rules and
// an optional override source.
func LoadRuleTable(src driven.RuleSource) (*RuleTable, error) {
	if src == nil {
		return DefaultRules(), nil
	}
	specs, replace, err := src.LoadRules()
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	if replace {
		return NewRuleTable(specs)
	}
	return NewRuleTable(append(append([]driven.RuleSpec{}, defaultRuleSpecs...), specs...))
}

// Rules returns a copy of the table.
func (t *RuleTable) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Specs returns the table in its configuration form.
func (t *RuleTable) Specs() []driven.RuleSpec {
	out := make([]driven.RuleSpec, len(t.rules))
	for i, r := range t.rules {
		out[i] = driven.RuleSpec{
			Classification: r.Classification,
			Pattern:        r.Pattern.String()[len("(?i)"):],
			Weight:         r.Weight,
		}
	}
	return out
}

// Scores returns the summed weight per classification for text.
func (t *RuleTable) Scores(text string) map[domain.Classification]float64 {
	scores := make(map[domain.Classification]float64)
	for _, r := range t.rules {
		hits := len(r.Pattern.FindAllStringIndex(text, maxHitsPerRule))
		if hits > 0 {
			scores[r.Classification] += r.Weight * float64(hits)
		}
	}
	return scores
}

// Classify returns the best-scoring classification and its confidence.
// Confidence is 1-exp(-score). Below floor the result is unknown with
// confidence capped at half the floor. Equal scores go to the
// classification whose first rule comes earliest in the table.
func (t *RuleTable) Classify(text string, floor float64) (domain.Classification, float64) {
	scores := t.Scores(text)

	best := domain.ClassUnknown
	bestScore := 0.0
	seen := make(map[domain.Classification]bool, len(scores))
	for _, r := range t.rules {
		c := r.Classification
		if seen[c] {
			continue
		}
		seen[c] = true
		if s := scores[c]; s > bestScore {
			best, bestScore = c, s
		}
	}

	confidence := roundScore(1 - math.Exp(-bestScore))
	if best == domain.ClassUnknown || confidence < floor {
		return domain.ClassUnknown, math.Min(confidence, roundScore(floor/2))
	}
	return best, confidence
}
