package memory

import (
	"sync"

	"github.com/custodia-labs/docwatch/internal/adapters/driven/config"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore is an in-memory driven.ConfigStore. Save and Load do nothing,
// so settings tests run without touching the filesystem.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore creates an empty in-memory config store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{values: make(map[string]any)}
}

// Get returns the raw value stored under key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

// lookup converts the value under key, or returns the zero value.
func lookup[T any](s *ConfigStore, key string, convert func(any) (T, bool)) T {
	var zero T
	val, ok := s.Get(key)
	if !ok {
		return zero
	}
	if v, ok := convert(val); ok {
		return v
	}
	return zero
}

func (s *ConfigStore) GetString(key string) string        { return lookup(s, key, config.String) }
func (s *ConfigStore) GetInt(key string) int              { return lookup(s, key, config.Int) }
func (s *ConfigStore) GetFloat(key string) float64        { return lookup(s, key, config.Float) }
func (s *ConfigStore) GetBool(key string) bool            { return lookup(s, key, config.Bool) }
func (s *ConfigStore) GetStringSlice(key string) []string { return lookup(s, key, config.Strings) }

// Set stores a value.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *ConfigStore) Save() error  { return nil }
func (s *ConfigStore) Load() error  { return nil }
func (s *ConfigStore) Path() string { return ":memory:" }
