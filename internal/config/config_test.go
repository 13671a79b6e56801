package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "master", cfg.DefaultBranch)
	assert.Equal(t, 1000, cfg.Store.CacheSize)
	assert.Equal(t, 1024, cfg.Store.CompressMinSize)
	assert.Equal(t, "logs/twig.log", cfg.Log.File)
	assert.False(t, cfg.Catalog.InMemory)
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
log_level = "debug"
default_branch = "main"

[store]
cache_size = 64
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Run("file overrides defaults", func(t *testing.T) {
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "main", cfg.DefaultBranch)
		assert.Equal(t, 64, cfg.Store.CacheSize)
		assert.Equal(t, 2, cfg.Store.CompressLevel)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("TWIG_LOG_LEVEL", "warn")
		t.Setenv("TWIG_STORE__CACHE_SIZE", "8")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.Equal(t, 8, cfg.Store.CacheSize)
		assert.Equal(t, "main", cfg.DefaultBranch)
	})

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(dir, "nope.toml"))
		require.NoError(t, err)
		assert.Equal(t, "master", cfg.DefaultBranch)
	})
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`default_branch = "a/b"`), 0644))

	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("[store]\ncache_size = 0\n"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}
