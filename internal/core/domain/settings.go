package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Default engine settings.
const (
	// DefaultMinExtractionLength is the trimmed input length at or above
	// which an empty extraction is treated as a failure.
	DefaultMinExtractionLength = 64

	// DefaultSimilarityThreshold is the minimum body similarity for two
	// sections with different ids to be considered the same section.
	DefaultSimilarityThreshold = 0.6

	// DefaultClassificationFloor is the minimum confidence for a
	// classification other than unknown.
	DefaultClassificationFloor = 0.5

	// DefaultBatchWorkers bounds concurrent ingestions in a batch.
	DefaultBatchWorkers = 8

	// DefaultCacheSize is the number of verified versions kept in memory.
	DefaultCacheSize = 100

	// DefaultSubjectPrefix is the NATS subject prefix for change events.
	DefaultSubjectPrefix = "docwatch.changes"
)

// EngineSettings holds tunable engine parameters.
type EngineSettings struct {
	// MinExtractionLength is the input length threshold for
	// incomplete-extraction detection.
	MinExtractionLength int

	// SimilarityThreshold is the secondary section matching threshold.
	SimilarityThreshold float64

	// ClassificationFloor is the confidence floor below which a change
	// is classified unknown.
	ClassificationFloor float64

	// Workers bounds concurrent ingestions in a batch.
	Workers int

	// RatePerSecond caps batch ingestion starts. Zero disables the limiter.
	RatePerSecond float64

	// DataDir is where the SQLite database lives.
	DataDir string

	// CacheSize is the number of versions held in the read cache.
	CacheSize int

	// RulesFile is an optional YAML classification rules file.
	RulesFile string

	// NATSURL enables change publishing when non-empty.
	NATSURL string

	// SubjectPrefix is the NATS subject prefix.
	SubjectPrefix string

	// PublishEnabled turns change publishing off without forgetting NATSURL.
	PublishEnabled bool

	// WatchExclude lists extra directory names the watcher skips.
	WatchExclude []string
}

// Publishing reports whether change events should be sent.
func (s *EngineSettings) Publishing() bool {
	return s.PublishEnabled && s.NATSURL != ""
}

// DefaultEngineSettings returns settings with sensible defaults.
func DefaultEngineSettings(homeDir string) EngineSettings {
	return EngineSettings{
		MinExtractionLength: DefaultMinExtractionLength,
		SimilarityThreshold: DefaultSimilarityThreshold,
		ClassificationFloor: DefaultClassificationFloor,
		Workers:             DefaultBatchWorkers,
		DataDir:             filepath.Join(homeDir, ".docwatch", "data"),
		CacheSize:           DefaultCacheSize,
		SubjectPrefix:       DefaultSubjectPrefix,
		PublishEnabled:      true,
	}
}

// Validate checks the settings are usable.
func (s *EngineSettings) Validate() error {
	switch {
	case s.MinExtractionLength < 0:
		return fmt.Errorf("%w: extraction.min_length must be >= 0", ErrInvalidInput)
	case s.SimilarityThreshold <= 0 || s.SimilarityThreshold > 1:
		return fmt.Errorf("%w: detection.similarity_threshold must be in (0,1]", ErrInvalidInput)
	case s.ClassificationFloor < 0 || s.ClassificationFloor >= 1:
		return fmt.Errorf("%w: detection.classification_floor must be in [0,1)", ErrInvalidInput)
	case s.Workers < 1:
		return fmt.Errorf("%w: batch.workers must be >= 1", ErrInvalidInput)
	case s.RatePerSecond < 0:
		return fmt.Errorf("%w: batch.rate_per_second must be >= 0", ErrInvalidInput)
	case s.CacheSize < 0:
		return fmt.Errorf("%w: storage.cache_size must be >= 0", ErrInvalidInput)
	}
	for _, dir := range s.WatchExclude {
		if strings.TrimSpace(dir) == "" || strings.ContainsAny(dir, `/\`) {
			return fmt.Errorf("%w: watch.exclude entry %q must be a directory name", ErrInvalidInput, dir)
		}
	}
	return nil
}
