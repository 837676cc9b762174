package driving

import (
	"context"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// Ingestor ingests already-fetched content for one source.
type Ingestor interface {
	// Ingest normalises raw, deduplicates against the latest version and
	// commits the version with its changes atomically.
	Ingest(ctx context.Context, raw domain.RawDocument) (*domain.IngestionOutcome, error)
}

// BatchIngestor ingests many sources concurrently.
type BatchIngestor interface {
	// IngestAll processes every document and returns one outcome per
	// input, in input order. Per-source failures never abort siblings.
	// Cancelling ctx stops new sources from starting.
	IngestAll(ctx context.Context, docs []domain.RawDocument) *domain.BatchReport
}
