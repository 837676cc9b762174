// Package mcp provides an MCP (Model Context Protocol) server adapter for docwatch.
// It lets AI assistants query detected changes, version lineage and
// section history, and submit content for ingestion.
package mcp

import "errors"

// ErrMissingLineageService is returned when the lineage service is not provided.
var ErrMissingLineageService = errors.New("mcp: lineage service is required")
