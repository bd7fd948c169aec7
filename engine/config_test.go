package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pangaea-engine/pangaea/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[window]
title = "Test"
width = 640
height = 480

[renderer]
debug = false
vsync = false
pipeline_cache_dir = "/tmp/pso"

[log]
level = "warn"
`), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Test", config.Window.Title)
	assert.Equal(t, uint32(640), config.Window.Width)
	assert.Equal(t, uint32(480), config.Window.Height)
	assert.False(t, config.Renderer.Debug)
	assert.False(t, config.Renderer.VSync)
	assert.Equal(t, "/tmp/pso", config.Renderer.PipelineCacheDir)

	level, err := config.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, core.WarnLevel, level)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, "shaders", config.Renderer.ShaderDir)
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`window = not toml`), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsZeroWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[window]
width = 0
height = 720
`), 0o644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "window dimensions")
}

func TestLogLevelRejectsUnknownName(t *testing.T) {
	config := DefaultConfig()
	config.Log.Level = "verbose"
	_, err := config.LogLevel()
	assert.ErrorContains(t, err, "unknown log level")
}
