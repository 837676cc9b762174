package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for docwatch resources.
	uriScheme = "docwatch://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sources",
		Name:        "sources",
		Description: "All monitored documents",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "stats",
		Name:        "stats",
		Description: "Version store statistics and change totals",
		MIMEType:    "application/json",
	}, s.handleStatsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "sources/{sourceId}/versions",
		Name:        "source-versions",
		Description: "Version lineage of one monitored document, oldest first",
		MIMEType:    "application/json",
	}, s.handleVersionsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "versions/{versionId}",
		Name:        "version",
		Description: "The normalised sections of one version",
		MIMEType:    "application/json",
	}, s.handleVersionResource)
}

// handleSourcesResource returns all known sources.
func (s *Server) handleSourcesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	sources, err := s.ports.Lineage.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}

	type sourceInfo struct {
		ID        string    `json:"id"`
		URL       string    `json:"url"`
		Type      string    `json:"type"`
		CreatedAt time.Time `json:"created_at"`
	}

	infos := make([]sourceInfo, len(sources))
	for i, src := range sources {
		infos[i] = sourceInfo{
			ID:        src.ID,
			URL:       src.URL,
			Type:      string(src.Type),
			CreatedAt: src.CreatedAt,
		}
	}
	return jsonResult(req.Params.URI, infos)
}

// handleStatsResource returns store statistics.
func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	stats, err := s.ports.Lineage.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}

	type statsInfo struct {
		Sources          int                           `json:"sources"`
		Versions         int                           `json:"versions"`
		Sections         int                           `json:"sections"`
		Changes          int                           `json:"changes"`
		ByClassification map[domain.Classification]int `json:"by_classification"`
		ByType           map[domain.ChangeType]int     `json:"by_type"`
	}
	return jsonResult(req.Params.URI, statsInfo{
		Sources:          stats.Sources,
		Versions:         stats.Versions,
		Sections:         stats.Sections,
		Changes:          stats.Changes,
		ByClassification: stats.ByClassification,
		ByType:           stats.ByType,
	})
}

// handleVersionsResource returns the version lineage of one source.
func (s *Server) handleVersionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract sourceId from URI: docwatch://sources/{sourceId}/versions
	sourceID := extractSourceID(req.Params.URI)
	if sourceID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	versions, err := s.ports.Lineage.Versions(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	if len(versions) == 0 {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	type versionInfo struct {
		ID          string    `json:"id"`
		ContentHash string    `json:"content_hash"`
		Sections    int       `json:"sections"`
		ExtractedAt time.Time `json:"extracted_at"`
	}

	infos := make([]versionInfo, len(versions))
	for i := range versions {
		infos[i] = versionInfo{
			ID:          versions[i].ID,
			ContentHash: versions[i].ContentHash,
			Sections:    len(versions[i].Sections),
			ExtractedAt: versions[i].ExtractedAt,
		}
	}
	return jsonResult(req.Params.URI, infos)
}

// handleVersionResource returns the sections of one version.
func (s *Server) handleVersionResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract versionId from URI: docwatch://versions/{versionId}
	versionID := extractVersionID(req.Params.URI)
	if versionID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	v, err := s.ports.Lineage.Version(ctx, versionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting version: %w", err)
	}

	type sectionInfo struct {
		ID      string `json:"id"`
		Heading string `json:"heading,omitempty"`
		Level   int    `json:"level"`
		Body    string `json:"body"`
	}
	type versionInfo struct {
		ID          string            `json:"id"`
		SourceID    string            `json:"source_id"`
		ContentHash string            `json:"content_hash"`
		ExtractedAt time.Time         `json:"extracted_at"`
		Metadata    map[string]string `json:"metadata,omitempty"`
		Sections    []sectionInfo     `json:"sections"`
	}

	info := versionInfo{
		ID:          v.ID,
		SourceID:    v.SourceID,
		ContentHash: v.ContentHash,
		ExtractedAt: v.ExtractedAt,
		Metadata:    v.Metadata,
		Sections:    make([]sectionInfo, len(v.Sections)),
	}
	for i := range v.Sections {
		info.Sections[i] = sectionInfo{
			ID:      v.Sections[i].ID,
			Heading: v.Sections[i].Heading,
			Level:   v.Sections[i].Level,
			Body:    v.Sections[i].Body,
		}
	}
	return jsonResult(req.Params.URI, info)
}

// jsonResult wraps v as a single JSON resource content.
func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSourceID extracts the source ID from a URI like docwatch://sources/{sourceId}/versions.
func extractSourceID(uri string) string {
	const prefix = uriScheme + "sources/"
	const suffix = "/versions"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}

// extractVersionID extracts the version ID from a URI like docwatch://versions/{versionId}.
func extractVersionID(uri string) string {
	const prefix = uriScheme + "versions/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
