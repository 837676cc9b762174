package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// defaultChangeLimit caps list_changes results when no limit is given.
const defaultChangeLimit = 50

// ListChangesInput is the input schema for the list_changes tool.
type ListChangesInput struct {
	SourceID       string  `json:"source_id,omitempty" jsonschema:"only changes for this source (default all sources)"`
	Since          string  `json:"since,omitempty" jsonschema:"RFC3339 time; only changes detected at or after it"`
	Classification string  `json:"classification,omitempty" jsonschema:"only this classification: security, feature, deprecation, bugfix, documentation, configuration or unknown"`
	MinImpact      float64 `json:"min_impact,omitempty" jsonschema:"only changes with impact score at or above this value"`
	Limit          int     `json:"limit,omitempty" jsonschema:"maximum number of changes to return, newest first (default 50)"`
}

// ChangeOutput is one change in tool output.
type ChangeOutput struct {
	ID              string    `json:"id"`
	SourceID        string    `json:"source_id"`
	OldVersionID    string    `json:"old_version_id"`
	NewVersionID    string    `json:"new_version_id"`
	Type            string    `json:"type"`
	SectionID       string    `json:"section_id"`
	Heading         string    `json:"heading,omitempty"`
	Classification  string    `json:"classification"`
	ImpactScore     float64   `json:"impact_score"`
	ConfidenceScore float64   `json:"confidence_score"`
	Diff            string    `json:"diff"`
	DetectedAt      time.Time `json:"detected_at"`
}

// ListChangesOutput is the output schema for the list_changes tool.
type ListChangesOutput struct {
	Changes []ChangeOutput `json:"changes"`
	Count   int            `json:"count"`
}

// CompareInput is the input schema for the compare_versions tool.
type CompareInput struct {
	OldVersionID string `json:"old_version_id" jsonschema:"the earlier version id"`
	NewVersionID string `json:"new_version_id" jsonschema:"the later version id"`
}

// CompareOutput is the output schema for the compare_versions tool.
type CompareOutput struct {
	Added     int            `json:"added"`
	Removed   int            `json:"removed"`
	Modified  int            `json:"modified"`
	Unchanged int            `json:"unchanged"`
	Changes   []ChangeOutput `json:"changes"`
}

// SectionHistoryInput is the input schema for the section_history tool.
type SectionHistoryInput struct {
	SourceID  string `json:"source_id" jsonschema:"the source id"`
	SectionID string `json:"section_id" jsonschema:"the section id"`
}

// RevisionOutput is one entry of a section history.
type RevisionOutput struct {
	VersionID   string    `json:"version_id"`
	ExtractedAt time.Time `json:"extracted_at"`
	Heading     string    `json:"heading"`
	Body        string    `json:"body"`
	Changed     bool      `json:"changed"`
}

// SectionHistoryOutput is the output schema for the section_history tool.
type SectionHistoryOutput struct {
	Revisions []RevisionOutput `json:"revisions"`
}

// VerifyInput is the input schema for the verify_version tool.
type VerifyInput struct {
	VersionID string `json:"version_id" jsonschema:"the version id to verify"`
}

// VerifyOutput is the output schema for the verify_version tool.
type VerifyOutput struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

// IngestInput is the input schema for the ingest_document tool.
type IngestInput struct {
	SourceID string `json:"source_id" jsonschema:"stable identifier of the monitored document"`
	URI      string `json:"uri,omitempty" jsonschema:"where the content was fetched from"`
	Type     string `json:"type" jsonschema:"content format: html, markdown, text"`
	Content  string `json:"content" jsonschema:"the document content"`
}

// IngestOutput is the output schema for the ingest_document tool.
type IngestOutput struct {
	VersionID   string         `json:"version_id"`
	IsDuplicate bool           `json:"is_duplicate"`
	Changes     []ChangeOutput `json:"changes"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_changes",
		Description: "List detected document changes, newest first, with classification and impact",
	}, s.handleListChanges)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "compare_versions",
		Description: "Summarise the differences between two versions of one document",
	}, s.handleCompare)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "section_history",
		Description: "Trace one section of a document across all of its versions",
	}, s.handleSectionHistory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "verify_version",
		Description: "Re-check the integrity of one stored version",
	}, s.handleVerify)

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_document",
			Description: "Store new content for a document and return the changes it introduced",
		}, s.handleIngest)
	}
}

// handleListChanges handles the list_changes tool invocation.
func (s *Server) handleListChanges(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListChangesInput,
) (*mcp.CallToolResult, ListChangesOutput, error) {
	var since time.Time
	if input.Since != "" {
		t, err := time.Parse(time.RFC3339, input.Since)
		if err != nil {
			return nil, ListChangesOutput{}, fmt.Errorf("invalid since %q: %w", input.Since, err)
		}
		since = t
	}
	var class domain.Classification
	if input.Classification != "" {
		c, err := domain.ParseClassification(input.Classification)
		if err != nil {
			return nil, ListChangesOutput{}, err
		}
		class = c
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultChangeLimit
	}

	changes, err := s.ports.Lineage.Changes(ctx, input.SourceID, since)
	if err != nil {
		return nil, ListChangesOutput{}, err
	}

	output := ListChangesOutput{Changes: []ChangeOutput{}}
	for i := len(changes) - 1; i >= 0 && len(output.Changes) < limit; i-- {
		c := &changes[i]
		if class != "" && c.Classification != class {
			continue
		}
		if c.ImpactScore < input.MinImpact {
			continue
		}
		output.Changes = append(output.Changes, toChangeOutput(c))
	}
	output.Count = len(output.Changes)
	return nil, output, nil
}

// handleCompare handles the compare_versions tool invocation.
func (s *Server) handleCompare(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CompareInput,
) (*mcp.CallToolResult, CompareOutput, error) {
	cmp, err := s.ports.Lineage.Compare(ctx, input.OldVersionID, input.NewVersionID)
	if err != nil {
		return nil, CompareOutput{}, err
	}
	return nil, CompareOutput{
		Added:     cmp.Added,
		Removed:   cmp.Removed,
		Modified:  cmp.Modified,
		Unchanged: cmp.Unchanged,
		Changes:   toChangeOutputs(cmp.Changes),
	}, nil
}

// handleSectionHistory handles the section_history tool invocation.
func (s *Server) handleSectionHistory(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SectionHistoryInput,
) (*mcp.CallToolResult, SectionHistoryOutput, error) {
	history, err := s.ports.Lineage.SectionHistory(ctx, input.SourceID, input.SectionID)
	if err != nil {
		return nil, SectionHistoryOutput{}, err
	}
	output := SectionHistoryOutput{Revisions: make([]RevisionOutput, len(history))}
	for i := range history {
		output.Revisions[i] = RevisionOutput{
			VersionID:   history[i].VersionID,
			ExtractedAt: history[i].ExtractedAt,
			Heading:     history[i].Section.Heading,
			Body:        history[i].Section.Body,
			Changed:     history[i].Changed,
		}
	}
	return nil, output, nil
}

// handleVerify handles the verify_version tool invocation.
func (s *Server) handleVerify(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input VerifyInput,
) (*mcp.CallToolResult, VerifyOutput, error) {
	report, err := s.ports.Lineage.VerifyVersion(ctx, input.VersionID)
	if err != nil {
		return nil, VerifyOutput{}, err
	}
	return nil, VerifyOutput{Valid: report.Valid, Problems: report.Problems}, nil
}

// handleIngest handles the ingest_document tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	sourceType, err := domain.ParseSourceType(input.Type)
	if err != nil {
		return nil, IngestOutput{}, err
	}
	outcome, err := s.ports.Ingest.Ingest(ctx, domain.RawDocument{
		SourceID: input.SourceID,
		URI:      input.URI,
		Type:     sourceType,
		Content:  []byte(input.Content),
	})
	if err != nil {
		return nil, IngestOutput{}, err
	}
	return nil, IngestOutput{
		VersionID:   outcome.VersionID,
		IsDuplicate: outcome.IsDuplicate,
		Changes:     toChangeOutputs(outcome.Changes),
	}, nil
}

func toChangeOutput(c *domain.Change) ChangeOutput {
	return ChangeOutput{
		ID:              c.ID,
		SourceID:        c.SourceID,
		OldVersionID:    c.OldVersionID,
		NewVersionID:    c.NewVersionID,
		Type:            string(c.Type),
		SectionID:       c.SectionID,
		Heading:         c.Heading,
		Classification:  string(c.Classification),
		ImpactScore:     c.ImpactScore,
		ConfidenceScore: c.ConfidenceScore,
		Diff:            c.Diff,
		DetectedAt:      c.DetectedAt,
	}
}

func toChangeOutputs(changes []domain.Change) []ChangeOutput {
	out := make([]ChangeOutput, len(changes))
	for i := range changes {
		out[i] = toChangeOutput(&changes[i])
	}
	return out
}
