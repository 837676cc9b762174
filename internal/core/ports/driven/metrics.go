package driven

import (
	"time"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// MetricsRecorder receives engine instrumentation.
// Optional: a nil recorder disables metrics.
type MetricsRecorder interface {
	// IngestionFinished records one ingestion and its outcome.
	IngestionFinished(sourceType domain.SourceType, outcome *domain.IngestionOutcome, err error, elapsed time.Duration)

	// ChangeDetected records one committed change.
	ChangeDetected(change *domain.Change)

	// SectionSkipped records a section dropped by failure isolation.
	SectionSkipped(stage domain.Stage)
}
