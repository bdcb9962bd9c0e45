// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigEnvironmentVariable names the file [Load] reads.
const ConfigEnvironmentVariable = "BLOCKFS_CONFIG"

// Config is the configuration for the blockfs command.
type Config struct {
	// Image is the path of the image file.
	Image string `yaml:"image"`

	// Mountpoint is the directory the image is mounted on.
	Mountpoint string `yaml:"mountpoint"`

	// AllowOther lets users other than the mounting user access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool `yaml:"allow_other"`

	// LogLevel is one of debug, info, warn, error.
	// Default: info
	LogLevel string `yaml:"log_level"`

	// SyncInterval is how often a mounted image is flushed to disk,
	// as a Go duration. "0" disables periodic flushing; the image is
	// still flushed on unmount.
	// Default: 30s
	SyncInterval string `yaml:"sync_interval"`

	// Format configures mkfs.
	Format FormatConfig `yaml:"format"`

	// Snapshot configures snapshot export.
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

// FormatConfig configures new images.
type FormatConfig struct {
	// BlockCount is the number of 4096-byte blocks in a new image.
	// Must be a multiple of 8 above 4.
	// Default: 256
	BlockCount int `yaml:"block_count"`
}

// SnapshotConfig configures snapshot export.
type SnapshotConfig struct {
	// Compression is zstd or lz4.
	// Default: zstd
	Compression string `yaml:"compression"`
}

// Default returns the default configuration. Loaded files are merged
// over it.
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		SyncInterval: "30s",
		Format: FormatConfig{
			BlockCount: 256,
		},
		Snapshot: SnapshotConfig{
			Compression: "zstd",
		},
	}
}

// Load loads configuration from the file named by BLOCKFS_CONFIG.
//
// There are no fallbacks: if BLOCKFS_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(ConfigEnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your blockfs.yaml config file, or use --config flag",
			ConfigEnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path and expands
// ${VAR} and ${VAR:-default} in the path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Image = expandVars(c.Image, vars)
	c.Mountpoint = expandVars(c.Mountpoint, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. Image and mountpoint
// are not required here: commands that need them check after merging
// positional arguments.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SyncEvery(); err != nil {
		errs = append(errs, err)
	}

	if count := c.Format.BlockCount; count <= 4 || count%8 != 0 {
		errs = append(errs, fmt.Errorf("format.block_count must be a multiple of 8 above 4, got %d", count))
	}

	switch c.Snapshot.Compression {
	case "zstd", "lz4":
	default:
		errs = append(errs, fmt.Errorf("snapshot.compression must be zstd or lz4, got %q", c.Snapshot.Compression))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level must be one of debug, info, warn, error: %w", err)
	}
	return level, nil
}

// SyncEvery parses SyncInterval. Zero disables periodic flushing.
func (c *Config) SyncEvery() (time.Duration, error) {
	interval, err := time.ParseDuration(c.SyncInterval)
	if err != nil {
		return 0, fmt.Errorf("sync_interval: %w", err)
	}
	if interval < 0 {
		return 0, fmt.Errorf("sync_interval must not be negative, got %s", interval)
	}
	return interval, nil
}
