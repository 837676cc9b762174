package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_CreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save())

	_, err = os.Stat(filepath.Join(dir, "config.toml"))
	assert.NoError(t, err)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("storage.data_dir", "/var/lib/docwatch"))
	require.NoError(t, store.Set("batch.workers", 4))
	require.NoError(t, store.Set("detection.similarity_threshold", 0.75))
	require.NoError(t, store.Set("publish.enabled", true))
	require.NoError(t, store.Set("sources.types", []string{"html", "pdf"}))

	assert.Equal(t, "/var/lib/docwatch", store.GetString("storage.data_dir"))
	assert.Equal(t, 4, store.GetInt("batch.workers"))
	assert.InDelta(t, 0.75, store.GetFloat("detection.similarity_threshold"), 1e-9)
	assert.InDelta(t, 4.0, store.GetFloat("batch.workers"), 1e-9)
	assert.True(t, store.GetBool("publish.enabled"))
	assert.Equal(t, []string{"html", "pdf"}, store.GetStringSlice("sources.types"))
}

func TestConfigStore_WrongTypesReturnZero(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("batch.workers", "many"))

	assert.Equal(t, 0, store.GetInt("batch.workers"))
	assert.Zero(t, store.GetFloat("batch.workers"))
	assert.False(t, store.GetBool("batch.workers"))
	assert.Nil(t, store.GetStringSlice("batch.workers"))
	assert.Empty(t, store.GetString("missing"))

	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("detection.classification_floor", 0.4))
	require.NoError(t, store.Set("batch.workers", 12))
	require.NoError(t, store.Set("rules.file", "/etc/docwatch/rules.yaml"))

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, reloaded.GetFloat("detection.classification_floor"), 1e-9)
	assert.Equal(t, 12, reloaded.GetInt("batch.workers"))
	assert.Equal(t, "/etc/docwatch/rules.yaml", reloaded.GetString("rules.file"))
}

func TestConfigStore_LoadNestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[detection]
similarity_threshold = 0.7

[batch]
workers = 3
rate_per_second = 2
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, store.GetFloat("detection.similarity_threshold"), 1e-9)
	assert.Equal(t, 3, store.GetInt("batch.workers"))
	assert.InDelta(t, 2.0, store.GetFloat("batch.rate_per_second"), 1e-9)
}

func TestConfigStore_LoadInvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("[broken"), 0600))

	_, err := NewConfigStore(tmpDir)
	assert.Error(t, err)
}

func TestConfigStore_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), nil, 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	_, ok := store.Get("anything")
	assert.False(t, ok)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("batch.workers", 2))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("batch.workers", n)
			_ = store.GetInt("batch.workers")
		}(i)
	}
	wg.Wait()

	_, ok := store.Get("batch.workers")
	assert.True(t, ok)
}

func TestConfigStore_WritesNestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("batch.workers", 6))
	require.NoError(t, store.Set("watch.exclude", []string{"build", "dist"}))
	require.NoError(t, store.Set("publish.enabled", false))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "[batch]")
	assert.Contains(t, content, "[watch]")
	assert.NotContains(t, content, `"batch.workers"`)

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 6, reloaded.GetInt("batch.workers"))
	assert.Equal(t, []string{"build", "dist"}, reloaded.GetStringSlice("watch.exclude"))
	v, ok := reloaded.Get("publish.enabled")
	require.True(t, ok)
	assert.Equal(t, false, v)
}

func TestConfigStore_RejectsBadKeys(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("batch.workers", 2))

	assert.Error(t, store.Set("", 1))
	assert.Error(t, store.Set("batch..workers", 1))
	assert.Error(t, store.Set("batch", 1))
	assert.Error(t, store.Set("batch.workers.max", 1))

	_, ok := store.Get("batch")
	assert.False(t, ok)
	assert.Equal(t, 2, store.GetInt("batch.workers"))
}

func TestConfigStore_LeavesNoTempFiles(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Set("batch.workers", i+1))
	}

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "config.toml", entries[0].Name())
}
