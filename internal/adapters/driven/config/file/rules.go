package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
)

// Ensure RuleFile implements the interface.
var _ driven.RuleSource = (*RuleFile)(nil)

// RuleFile loads classification rule overrides from a YAML document:
//
//	replace: false
//	rules:
//	  - classification: security
//	    pattern: '\bzero[- ]day\b'
//	    weight: 1.5
//
// With replace set the file is the whole rule table; otherwise its rules
// are appended to the built-in ones.
type RuleFile struct {
	path string
}

// ruleDocument is the on-disk layout.
type ruleDocument struct {
	Replace bool        `yaml:"replace"`
	Rules   []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Classification string  `yaml:"classification"`
	Pattern        string  `yaml:"pattern"`
	Weight         float64 `yaml:"weight"`
}

// NewRuleFile creates a rule source reading path.
// If path is empty, defaults to ~/.docwatch/rules.yaml.
func NewRuleFile(path string) (*RuleFile, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, ".docwatch", "rules.yaml")
	}
	return &RuleFile{path: path}, nil
}

// Path returns the rules file path.
func (f *RuleFile) Path() string {
	return f.path
}

// LoadRules reads and decodes the rules file.
// A missing file yields no overrides.
func (f *RuleFile) LoadRules() ([]driven.RuleSpec, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read rules file: %w", err)
	}

	var doc ruleDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		// An empty document decodes to io.EOF.
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidInput, f.path, err)
	}

	specs := make([]driven.RuleSpec, 0, len(doc.Rules))
	for i, r := range doc.Rules {
		c, err := domain.ParseClassification(r.Classification)
		if err != nil {
			return nil, false, fmt.Errorf("rule %d: %w", i+1, err)
		}
		specs = append(specs, driven.RuleSpec{
			Classification: c,
			Pattern:        r.Pattern,
			Weight:         r.Weight,
		})
	}
	return specs, doc.Replace, nil
}

// Save writes specs as a rules file, creating the directory if needed.
func (f *RuleFile) Save(specs []driven.RuleSpec, replace bool) error {
	doc := ruleDocument{Replace: replace, Rules: make([]ruleEntry, 0, len(specs))}
	for _, s := range specs {
		doc.Rules = append(doc.Rules, ruleEntry{
			Classification: string(s.Classification),
			Pattern:        s.Pattern,
			Weight:         s.Weight,
		})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("create rules directory: %w", err)
	}
	if err := os.WriteFile(f.path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write rules file: %w", err)
	}
	return nil
}
