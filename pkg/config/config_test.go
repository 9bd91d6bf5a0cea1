package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigPassesValidation(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddress)
	assert.True(t, cfg.AllowOverrideExistingPackageOnPush)
	assert.True(t, cfg.EnableFileSystemMonitoring)
}

func TestLoadParsesYAMLOverridingDefaults(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "pkgfeed.yaml")

	configContent := "enableDelisting: true\nlistenAddress: \":9090\"\nhashAlgorithm: sha256\n"
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.True(t, cfg.EnableDelisting)
	assert.Equal(t, ":9090", cfg.ListenAddress)
	assert.Equal(t, "sha256", cfg.HashAlgorithm)
	// Fields absent from the YAML keep their defaults.
	assert.Equal(t, 60, cfg.CacheRebuildFrequencyInMinutes)
}

func TestLoadMissingPathFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "pkgfeed.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("not: [valid yaml"), 0o644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "pkgfeed.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("listenAddress: \":9090\"\n"), 0o644))

	t.Setenv("PKGFEED_LISTEN_ADDRESS", ":7070")
	t.Setenv("PKGFEED_ENABLE_DELISTING", "true")
	t.Setenv("PKGFEED_INITIAL_CACHE_REBUILD_AFTER_SECONDS", "5")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.ListenAddress)
	assert.True(t, cfg.EnableDelisting)
	assert.Equal(t, 5, cfg.InitialCacheRebuildAfterSeconds)
}

func TestValidateRejectsBadHashAlgorithm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HashAlgorithm = "md5"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveIntervals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialCacheRebuildAfterSeconds = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.CacheRebuildFrequencyInMinutes = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsCacheFileNameWithPathSeparator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheFileName = "sub/dir.cache.bin"
	assert.Error(t, cfg.Validate())
}
