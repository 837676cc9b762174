package mcp

import (
	"github.com/custodia-labs/docwatch/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Lineage answers change and version queries.
	Lineage driving.LineageService

	// Ingest accepts content for a source. Optional: without it the
	// ingest_document tool is not registered.
	Ingest driving.Ingestor
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Lineage == nil {
		return ErrMissingLineageService
	}
	return nil
}
