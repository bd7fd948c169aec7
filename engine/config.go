package engine

import (
	"fmt"
	"os"

	"github.com/pangaea-engine/pangaea/engine/core"
	"github.com/pelletier/go-toml/v2"
)

// Config is the engine's startup configuration, read from a TOML file.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Log      LogConfig      `toml:"log"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	X      uint32 `toml:"x"`
	Y      uint32 `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	Debug            bool   `toml:"debug"`
	VSync            bool   `toml:"vsync"`
	PipelineCacheDir string `toml:"pipeline_cache_dir"`
	ShaderDir        string `toml:"shader_dir"`
	WatchShaders     bool   `toml:"watch_shaders"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{
			Title:  "Pangaea 2.0",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			Debug:            true,
			VSync:            true,
			PipelineCacheDir: "cache",
			ShaderDir:        "shaders",
			WatchShaders:     true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads the TOML file at path, layering it over the defaults. A
// missing file yields the defaults; a malformed file is an error.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			core.LogInfo("No config file at %s, using defaults.", path)
			return config, nil
		}
		return config, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("config: window dimensions must be non-zero, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel maps the configured level name onto the logging package's levels.
func (c *Config) LogLevel() (core.LogLevel, error) {
	switch c.Log.Level {
	case "debug":
		return core.DebugLevel, nil
	case "", "info":
		return core.InfoLevel, nil
	case "warn":
		return core.WarnLevel, nil
	case "error":
		return core.ErrorLevel, nil
	default:
		return core.InfoLevel, fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
}
