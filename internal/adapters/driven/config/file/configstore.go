package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/docwatch/internal/adapters/driven/config"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// configFile is the settings file name inside the config directory.
const configFile = "config.toml"

// ConfigStore keeps docwatch settings in a TOML file. Keys are dotted
// paths ("batch.workers"); on disk each leading segment is a table:
//
//	[batch]
//	workers = 8
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	data     map[string]any
}

// NewConfigStore opens the config file in configDir, creating the
// directory if needed. If configDir is empty, defaults to ~/.docwatch.
// A missing file is an empty configuration.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".docwatch")
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	s := &ConfigStore{
		filePath: filepath.Join(configDir, configFile),
		data:     make(map[string]any),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the raw value stored under key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok
}

func get[T any](s *ConfigStore, key string, convert func(any) (T, bool)) T {
	var zero T
	if val, ok := s.Get(key); ok {
		if v, ok := convert(val); ok {
			return v
		}
	}
	return zero
}

// GetString returns the string under key, or "".
func (s *ConfigStore) GetString(key string) string { return get(s, key, config.String) }

// GetInt returns the integer under key, or 0.
func (s *ConfigStore) GetInt(key string) int { return get(s, key, config.Int) }

// GetFloat returns the number under key, or 0.
func (s *ConfigStore) GetFloat(key string) float64 { return get(s, key, config.Float) }

// GetBool returns the boolean under key, or false.
func (s *ConfigStore) GetBool(key string) bool { return get(s, key, config.Bool) }

// GetStringSlice returns the string array under key, or nil.
func (s *ConfigStore) GetStringSlice(key string) []string { return get(s, key, config.Strings) }

// Set stores a value and rewrites the file. A key may not be both a value
// and a table: "batch" cannot be set while "batch.workers" exists.
func (s *ConfigStore) Set(key string, value any) error {
	if err := checkKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for existing := range s.data {
		if existing != key && (strings.HasPrefix(existing, key+".") || strings.HasPrefix(key, existing+".")) {
			return fmt.Errorf("config key %q conflicts with %q", key, existing)
		}
	}
	prev, had := s.data[key]
	s.data[key] = value
	if err := s.save(); err != nil {
		if had {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

func checkKey(key string) error {
	if key == "" {
		return errors.New("config key is empty")
	}
	for _, part := range strings.Split(key, ".") {
		if part == "" {
			return fmt.Errorf("config key %q has an empty segment", key)
		}
	}
	return nil
}

// Save rewrites the file from the current values.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save writes the nested document to a temporary file and renames it over
// the config file (caller must hold lock).
func (s *ConfigStore) save() error {
	data, err := toml.Marshal(nest(s.data))
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.filePath), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.filePath); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// Load rereads the file, replacing all values.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.data = make(map[string]any)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", s.filePath, err)
	}
	s.data = make(map[string]any)
	flatten(doc, "", s.data)
	return nil
}

// flatten copies nested tables into out under dotted keys.
func flatten(doc map[string]any, prefix string, out map[string]any) {
	for k, v := range doc {
		if prefix != "" {
			k = prefix + "." + k
		}
		if table, ok := v.(map[string]any); ok {
			flatten(table, k, out)
			continue
		}
		out[k] = v
	}
}

// nest is the inverse of flatten.
func nest(flat map[string]any) map[string]any {
	doc := make(map[string]any)
	for key, v := range flat {
		parts := strings.Split(key, ".")
		table := doc
		for _, p := range parts[:len(parts)-1] {
			next, ok := table[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				table[p] = next
			}
			table = next
		}
		table[parts[len(parts)-1]] = v
	}
	return doc
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}
