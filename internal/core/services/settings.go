package services

import (
	"fmt"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
	"github.com/custodia-labs/docwatch/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyMinLength     = "extraction.min_length"
	keySimilarity    = "detection.similarity_threshold"
	keyFloor         = "detection.classification_floor"
	keyWorkers       = "batch.workers"
	keyRate          = "batch.rate_per_second"
	keyDataDir       = "storage.data_dir"
	keyCacheSize     = "storage.cache_size"
	keyRulesFile     = "rules.file"
	keyNATSURL       = "publish.nats_url"
	keySubjectPrefix = "publish.subject_prefix"
	keyPublish       = "publish.enabled"
	keyWatchExclude  = "watch.exclude"
)

// SettingsService manages engine settings.
type SettingsService struct {
	configStore driven.ConfigStore
	homeDir     string
}

// NewSettingsService creates a new settings service.
// homeDir anchors the default data directory.
func NewSettingsService(configStore driven.ConfigStore, homeDir string) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		homeDir:     homeDir,
	}
}

// Get retrieves current engine settings. Missing keys take their defaults.
func (s *SettingsService) Get() (*domain.EngineSettings, error) {
	defaults := s.GetDefaults()

	settings := &domain.EngineSettings{
		MinExtractionLength: s.getInt(keyMinLength, defaults.MinExtractionLength),
		SimilarityThreshold: s.getFloat(keySimilarity, defaults.SimilarityThreshold),
		ClassificationFloor: s.getFloat(keyFloor, defaults.ClassificationFloor),
		Workers:             s.getInt(keyWorkers, defaults.Workers),
		RatePerSecond:       s.getFloat(keyRate, defaults.RatePerSecond),
		DataDir:             s.getString(keyDataDir, defaults.DataDir),
		CacheSize:           s.getInt(keyCacheSize, defaults.CacheSize),
		RulesFile:           s.configStore.GetString(keyRulesFile),
		NATSURL:             s.configStore.GetString(keyNATSURL),
		SubjectPrefix:       s.getString(keySubjectPrefix, defaults.SubjectPrefix),
		PublishEnabled:      s.getBool(keyPublish, defaults.PublishEnabled),
	}
	if exclude := s.configStore.GetStringSlice(keyWatchExclude); len(exclude) > 0 {
		settings.WatchExclude = exclude
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", s.configStore.Path(), err)
	}
	return settings, nil
}

// Save validates and persists engine settings.
func (s *SettingsService) Save(settings *domain.EngineSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	values := []struct {
		key   string
		value any
	}{
		{keyMinLength, settings.MinExtractionLength},
		{keySimilarity, settings.SimilarityThreshold},
		{keyFloor, settings.ClassificationFloor},
		{keyWorkers, settings.Workers},
		{keyRate, settings.RatePerSecond},
		{keyDataDir, settings.DataDir},
		{keyCacheSize, settings.CacheSize},
		{keyRulesFile, settings.RulesFile},
		{keyNATSURL, settings.NATSURL},
		{keySubjectPrefix, settings.SubjectPrefix},
		{keyPublish, settings.PublishEnabled},
		{keyWatchExclude, append([]string{}, settings.WatchExclude...)},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.EngineSettings {
	return domain.DefaultEngineSettings(s.homeDir)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}
