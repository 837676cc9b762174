package driven

import "github.com/custodia-labs/docwatch/internal/core/domain"

// RuleSpec is one classification rule as loaded from configuration.
type RuleSpec struct {
	// Classification is the category the rule votes for.
	Classification domain.Classification

	// Pattern is a regular expression, matched case-insensitively.
	Pattern string

	// Weight is added to the category score per matching span.
	Weight float64
}

// RuleSource loads classification rule overrides.
type RuleSource interface {
	// LoadRules returns rule overrides and whether they replace the
	// built-in table (true) or extend it (false).
	LoadRules() (rules []RuleSpec, replace bool, err error)
}
