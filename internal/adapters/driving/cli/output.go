package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// sourceView is the JSON form of a source.
type sourceView struct {
	ID        string    `json:"id"`
	URL       string    `json:"url,omitempty"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// sectionView is the JSON form of a section.
type sectionView struct {
	ID       string `json:"id"`
	Heading  string `json:"heading"`
	Level    int    `json:"level"`
	Position int    `json:"position"`
	Body     string `json:"body,omitempty"`
}

// versionView is the JSON form of a version.
type versionView struct {
	ID          string            `json:"id"`
	SourceID    string            `json:"source_id"`
	ContentHash string            `json:"content_hash"`
	ExtractedAt time.Time         `json:"extracted_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Sections    []sectionView     `json:"sections,omitempty"`
}

// changeView is the JSON form of a change.
type changeView struct {
	ID             string    `json:"id"`
	SourceID       string    `json:"source_id"`
	OldVersionID   string    `json:"old_version_id"`
	NewVersionID   string    `json:"new_version_id"`
	Type           string    `json:"type"`
	SectionID      string    `json:"section_id"`
	Heading        string    `json:"heading"`
	Classification string    `json:"classification"`
	Impact         float64   `json:"impact"`
	Confidence     float64   `json:"confidence"`
	Diff           string    `json:"diff,omitempty"`
	DetectedAt     time.Time `json:"detected_at"`
}

func toSourceView(s *domain.Source) sourceView {
	return sourceView{ID: s.ID, URL: s.URL, Type: string(s.Type), CreatedAt: s.CreatedAt}
}

func toVersionView(v *domain.Version, withSections, withBodies bool) versionView {
	out := versionView{
		ID:          v.ID,
		SourceID:    v.SourceID,
		ContentHash: v.ContentHash,
		ExtractedAt: v.ExtractedAt,
		Metadata:    v.Metadata,
	}
	if withSections {
		for _, s := range v.Sections {
			sv := sectionView{ID: s.ID, Heading: s.Heading, Level: s.Level, Position: s.Position}
			if withBodies {
				sv.Body = s.Body
			}
			out.Sections = append(out.Sections, sv)
		}
	}
	return out
}

func toChangeView(c *domain.Change) changeView {
	return changeView{
		ID:             c.ID,
		SourceID:       c.SourceID,
		OldVersionID:   c.OldVersionID,
		NewVersionID:   c.NewVersionID,
		Type:           string(c.Type),
		SectionID:      c.SectionID,
		Heading:        c.Heading,
		Classification: string(c.Classification),
		Impact:         c.ImpactScore,
		Confidence:     c.ConfidenceScore,
		Diff:           c.Diff,
		DetectedAt:     c.DetectedAt,
	}
}

func toChangeViews(changes []domain.Change) []changeView {
	out := make([]changeView, len(changes))
	for i := range changes {
		out[i] = toChangeView(&changes[i])
	}
	return out
}

// printJSON writes v as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// printChange writes a one-line change summary, plus the diff when asked.
func printChange(cmd *cobra.Command, c *domain.Change, withDiff bool) {
	cmd.Printf("  %-8s %-13s impact=%.2f conf=%.2f  %s [%s]\n",
		c.Type, c.Classification, c.ImpactScore, c.ConfidenceScore, headingOrUntitled(c.Heading), c.SectionID)
	if withDiff && c.Diff != "" {
		for _, line := range strings.Split(strings.TrimRight(c.Diff, "\n"), "\n") {
			cmd.Printf("      %s\n", line)
		}
	}
}

// shortHash trims a content hash for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
