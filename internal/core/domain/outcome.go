package domain

import (
	"errors"
	"time"
)

// IngestionOutcome is the result of ingesting one raw document.
type IngestionOutcome struct {
	// VersionID is the new version, or the latest one for duplicates.
	VersionID string

	// IsDuplicate is true when content matched the latest version.
	IsDuplicate bool

	// Changes are the changes committed with the version.
	Changes []Change
}

// Stage names where in the pipeline a per-source failure happened.
type Stage string

// Pipeline stages.
const (
	StageNormalise Stage = "normalise"
	StageDetect    Stage = "detect"
	StageStore     Stage = "store"
	StageIntegrity Stage = "integrity"
	StageRead      Stage = "read"
)

// StageFor maps an error to the stage it most likely came from.
func StageFor(err error) Stage {
	switch {
	case errors.Is(err, ErrCorruption):
		return StageIntegrity
	case errors.Is(err, ErrParse), errors.Is(err, ErrIncompleteExtraction), errors.Is(err, ErrUnsupportedType):
		return StageNormalise
	case errors.Is(err, ErrStorageWrite):
		return StageStore
	default:
		return StageRead
	}
}

// SourceOutcome is one row of a batch report.
type SourceOutcome struct {
	// SourceID identifies the source.
	SourceID string

	// Outcome is set when ingestion succeeded.
	Outcome *IngestionOutcome

	// Stage is set when ingestion failed.
	Stage Stage

	// Err is the failure, if any.
	Err error

	// Duration is how long the ingestion took.
	Duration time.Duration
}

// Failed returns true if the source did not ingest.
func (o *SourceOutcome) Failed() bool {
	return o.Err != nil
}

// BatchReport is the per-source outcome list for one batch run.
type BatchReport struct {
	// Outcomes are in input order. Sources skipped by cancellation
	// carry context.Canceled.
	Outcomes []SourceOutcome

	// StartedAt is when the batch began.
	StartedAt time.Time

	// FinishedAt is when the batch ended.
	FinishedAt time.Time
}

// Counts summarises the batch.
func (r *BatchReport) Counts() (ingested, duplicates, failed, changes int) {
	for i := range r.Outcomes {
		o := &r.Outcomes[i]
		switch {
		case o.Failed():
			failed++
		case o.Outcome != nil && o.Outcome.IsDuplicate:
			duplicates++
		case o.Outcome != nil:
			ingested++
			changes += len(o.Outcome.Changes)
		}
	}
	return ingested, duplicates, failed, changes
}
