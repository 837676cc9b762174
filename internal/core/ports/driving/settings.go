package driving

import "github.com/custodia-labs/docwatch/internal/core/domain"

// SettingsService manages engine settings.
type SettingsService interface {
	// Get returns current settings, defaults filled in.
	Get() (*domain.EngineSettings, error)

	// Save validates and persists settings.
	Save(settings *domain.EngineSettings) error

	// GetDefaults returns default settings.
	GetDefaults() domain.EngineSettings
}
