package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"

	"photomosaic/internal/logging"
	"photomosaic/internal/matcher"
	"photomosaic/internal/media"
	"photomosaic/internal/memory"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned by Validate for out-of-range settings.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultBlockSize     = 16
	DefaultMagnification = 2
	DefaultWorkers       = 2
)

// Config is the run configuration. It is built once by the CLI and passed by
// value to everything that needs it.
type Config struct {
	SourcePath string `toml:"-"`
	LibraryDir string `toml:"-"`
	OutputPath string `toml:"-"`

	BlockSize     int    `toml:"block_size"`
	Magnification int    `toml:"magnification"`
	Workers       int    `toml:"workers"` // 0 = one per CPU
	ColorCache    bool   `toml:"color_cache"`
	Metric        string `toml:"metric"`
	TileCacheSize int    `toml:"tile_cache_size"` // 0 = unbounded
	UseVips       bool   `toml:"vips"`

	// MemoryRatio is the share of MEMORY_LIMIT given to the heap.
	MemoryRatio float64 `toml:"memory_ratio"`

	Verbosity    int    `toml:"-"`
	PrintTimings bool   `toml:"print_timings"`
	Progress     bool   `toml:"progress"`
	MetricsFile  string `toml:"metrics_file"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		BlockSize:     DefaultBlockSize,
		Magnification: DefaultMagnification,
		Workers:       DefaultWorkers,
		Metric:        string(matcher.MetricRMS),
		MemoryRatio:   memory.DefaultMemoryRatio,
	}
}

// LoadFile overlays the settings present in the TOML file at path onto cfg.
// Keys missing from the file keep their current value.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays MOSAIC_WORKERS, MOSAIC_BLOCK_SIZE,
// MOSAIC_MAGNIFICATION and MEMORY_RATIO onto cfg. Unparseable values are
// ignored with a warning.
func ApplyEnv(cfg *Config) {
	cfg.Workers = getEnvInt("MOSAIC_WORKERS", cfg.Workers)
	cfg.BlockSize = getEnvInt("MOSAIC_BLOCK_SIZE", cfg.BlockSize)
	cfg.Magnification = getEnvInt("MOSAIC_MAGNIFICATION", cfg.Magnification)
	cfg.MemoryRatio = getEnvFloat("MEMORY_RATIO", cfg.MemoryRatio)
}

// Validate checks every setting and returns an error wrapping
// ErrInvalidConfig for the first problem found.
func (c Config) Validate() error {
	switch {
	case c.SourcePath == "":
		return fmt.Errorf("%w: source image path is empty", ErrInvalidConfig)
	case c.LibraryDir == "":
		return fmt.Errorf("%w: library directory is empty", ErrInvalidConfig)
	case c.OutputPath == "":
		return fmt.Errorf("%w: output path is empty", ErrInvalidConfig)
	case c.BlockSize < 1:
		return fmt.Errorf("%w: block size must be at least 1, got %d", ErrInvalidConfig, c.BlockSize)
	case c.Magnification < 1:
		return fmt.Errorf("%w: magnification must be at least 1, got %d", ErrInvalidConfig, c.Magnification)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	case c.TileCacheSize < 0:
		return fmt.Errorf("%w: tile cache size must not be negative, got %d", ErrInvalidConfig, c.TileCacheSize)
	case c.MemoryRatio <= 0 || c.MemoryRatio > 1:
		return fmt.Errorf("%w: memory ratio must be in (0, 1], got %g", ErrInvalidConfig, c.MemoryRatio)
	}

	if _, err := matcher.ParseMetric(c.Metric); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := media.OutputFormat(c.OutputPath); err != nil {
		return fmt.Errorf("%w: output %s: %v", ErrInvalidConfig, c.OutputPath, err)
	}
	return nil
}

// TileSize is the edge length of one tile in the output canvas.
func (c Config) TileSize() int {
	return c.BlockSize * c.Magnification
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Invalid number for %s: %q, using %g", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
