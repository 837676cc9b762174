package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown source type or normaliser.
	ErrUnsupportedType = errors.New("unsupported type")

	// Extraction Errors.

	// ErrParse indicates normalisation of one item failed.
	// Recoverable: the item is skipped and siblings continue.
	ErrParse = errors.New("parse error")

	// ErrIncompleteExtraction indicates substantial input produced no sections.
	// Recoverable: the item is skipped and flagged for review.
	ErrIncompleteExtraction = errors.New("incomplete extraction")

	// Storage Errors.

	// ErrCorruption indicates a checksum mismatch on read.
	// Never downgraded: the read fails and no data is substituted.
	ErrCorruption = errors.New("data corruption")

	// ErrStorageWrite indicates an atomic write failed and nothing was persisted.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrDuplicateContent indicates the content hash equals the latest stored version.
	ErrDuplicateContent = errors.New("duplicate content")
)

// FailureKind names the category of an extraction failure.
type FailureKind string

// Extraction failure kinds.
const (
	// FailureParse is a corrupt file, unsupported encoding or parser error.
	FailureParse FailureKind = "parse_error"

	// FailureIncomplete is an empty section list for substantial input.
	FailureIncomplete FailureKind = "incomplete_extraction"
)

// ExtractionFailure is returned by normalisers when one source cannot be
// turned into sections. It carries the source identity and the raw cause.
type ExtractionFailure struct {
	// SourceID identifies the source whose content failed.
	SourceID string

	// Kind is the failure category.
	Kind FailureKind

	// Err is the underlying cause, if any.
	Err error
}

// NewParseFailure wraps err as a parse_error for sourceID.
func NewParseFailure(sourceID string, err error) *ExtractionFailure {
	return &ExtractionFailure{SourceID: sourceID, Kind: FailureParse, Err: err}
}

// NewIncompleteExtraction reports an empty extraction for sourceID.
func NewIncompleteExtraction(sourceID string, inputLen int) *ExtractionFailure {
	return &ExtractionFailure{
		SourceID: sourceID,
		Kind:     FailureIncomplete,
		Err:      fmt.Errorf("no sections extracted from %d bytes of input", inputLen),
	}
}

// Error implements error.
func (e *ExtractionFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: source %s", e.Kind, e.SourceID)
	}
	return fmt.Sprintf("%s: source %s: %v", e.Kind, e.SourceID, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is.
func (e *ExtractionFailure) Unwrap() []error {
	kind := ErrParse
	if e.Kind == FailureIncomplete {
		kind = ErrIncompleteExtraction
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}

// CorruptionError reports a stored record whose checksum no longer matches.
type CorruptionError struct {
	// Entity is the collection name ("version", "change", "source").
	Entity string

	// ID is the record identifier.
	ID string

	// Expected is the stored checksum.
	Expected string

	// Actual is the checksum computed on read.
	Actual string
}

// Error implements error.
func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%s %s: checksum mismatch (stored %s, computed %s)",
		e.Entity, e.ID, short(e.Expected), short(e.Actual))
}

// Is matches ErrCorruption.
func (e *CorruptionError) Is(target error) bool {
	return target == ErrCorruption
}

func short(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
