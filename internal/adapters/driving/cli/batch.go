package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// manifest lists the sources ingested by one batch run.
type manifest struct {
	Sources []manifestEntry `yaml:"sources"`
}

type manifestEntry struct {
	SourceID string `yaml:"source_id"`
	Path     string `yaml:"path"`
	Type     string `yaml:"type,omitempty"`
	URI      string `yaml:"uri,omitempty"`
}

var batchCmd = &cobra.Command{
	Use:   "batch <manifest>",
	Short: "Ingest many sources concurrently from a manifest",
	Long: `Ingest many sources concurrently from a YAML manifest.

Each source is ingested independently: a failing source is reported and
never stops the others. Relative paths are resolved against the manifest's
directory. The command exits non-zero if any source failed.

Manifest format:
  sources:
    - source_id: acme-pricing
      path: pages/pricing.html
      uri: https://acme.example/pricing
    - source_id: acme-terms
      path: terms.pdf
      type: pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchIngestor == nil {
		return errors.New("batch service not configured")
	}

	m, err := loadManifest(args[0])
	if err != nil {
		return err
	}

	// Entries that cannot be read are reported in place without ingesting.
	outcomes := make([]domain.SourceOutcome, len(m.Sources))
	var docs []domain.RawDocument
	var slots []int
	base := filepath.Dir(args[0])
	for i, e := range m.Sources {
		doc, err := e.document(base)
		if err != nil {
			outcomes[i] = domain.SourceOutcome{SourceID: e.SourceID, Stage: domain.StageFor(err), Err: err}
			continue
		}
		docs = append(docs, doc)
		slots = append(slots, i)
	}

	report := batchIngestor.IngestAll(cmd.Context(), docs)
	for j, o := range report.Outcomes {
		outcomes[slots[j]] = o
	}
	report.Outcomes = outcomes

	ingested, duplicates, failed, changes := report.Counts()
	if jsonOutput(cmd) {
		if err := printJSON(cmd, batchJSON(report)); err != nil {
			return err
		}
	} else {
		for i := range report.Outcomes {
			printOutcome(cmd, &report.Outcomes[i])
		}
		cmd.Println()
		cmd.Printf("%d ingested, %d unchanged, %d failed, %d change(s) in %s\n",
			ingested, duplicates, failed, changes, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d source(s) failed", failed, len(report.Outcomes))
	}
	return nil
}

func printOutcome(cmd *cobra.Command, o *domain.SourceOutcome) {
	switch {
	case o.Failed():
		cmd.Printf("FAIL  %s  stage=%s  %v\n", o.SourceID, o.Stage, o.Err)
	case o.Outcome.IsDuplicate:
		cmd.Printf("SAME  %s  %s\n", o.SourceID, o.Outcome.VersionID)
	default:
		cmd.Printf("NEW   %s  %s  %d change(s)\n", o.SourceID, o.Outcome.VersionID, len(o.Outcome.Changes))
	}
}

type batchRow struct {
	SourceID    string       `json:"source_id"`
	VersionID   string       `json:"version_id,omitempty"`
	IsDuplicate bool         `json:"is_duplicate,omitempty"`
	Changes     []changeView `json:"changes,omitempty"`
	Stage       string       `json:"stage,omitempty"`
	Error       string       `json:"error,omitempty"`
	DurationMS  int64        `json:"duration_ms"`
}

func batchJSON(r *domain.BatchReport) []batchRow {
	rows := make([]batchRow, len(r.Outcomes))
	for i := range r.Outcomes {
		o := &r.Outcomes[i]
		row := batchRow{SourceID: o.SourceID, DurationMS: o.Duration.Milliseconds()}
		if o.Failed() {
			row.Stage = string(o.Stage)
			row.Error = o.Err.Error()
		} else {
			row.VersionID = o.Outcome.VersionID
			row.IsDuplicate = o.Outcome.IsDuplicate
			row.Changes = toChangeViews(o.Outcome.Changes)
		}
		rows[i] = row
	}
	return rows
}

// loadManifest reads and validates a batch manifest.
func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: parse manifest %s: %v", domain.ErrInvalidInput, path, err)
	}
	if len(m.Sources) == 0 {
		return nil, fmt.Errorf("%w: manifest %s lists no sources", domain.ErrInvalidInput, path)
	}

	seen := make(map[string]bool, len(m.Sources))
	for i, e := range m.Sources {
		switch {
		case e.SourceID == "":
			return nil, fmt.Errorf("%w: manifest entry %d has no source_id", domain.ErrInvalidInput, i+1)
		case e.Path == "":
			return nil, fmt.Errorf("%w: manifest entry %s has no path", domain.ErrInvalidInput, e.SourceID)
		case seen[e.SourceID]:
			return nil, fmt.Errorf("%w: source %s listed twice", domain.ErrInvalidInput, e.SourceID)
		}
		seen[e.SourceID] = true
	}
	return &m, nil
}

// document reads the entry's file relative to base.
func (e *manifestEntry) document(base string) (domain.RawDocument, error) {
	path := e.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}

	sourceType, err := resolveType(e.Type, path)
	if err != nil {
		return domain.RawDocument{}, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.RawDocument{}, fmt.Errorf("read %s: %w", path, err)
	}

	uri := e.URI
	if uri == "" {
		uri = "file://" + filepath.ToSlash(path)
	}
	return domain.RawDocument{SourceID: e.SourceID, URI: uri, Type: sourceType, Content: content}, nil
}
