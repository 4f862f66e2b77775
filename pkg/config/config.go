// Package config loads seamcarve settings from a TOML file.
//
// The file is optional. Values that are absent keep their defaults, and
// command-line flags override whatever the file sets. The default location
// follows the XDG base directory convention:
//
//	$XDG_CONFIG_HOME/seamcarve/config.toml
//	~/.config/seamcarve/config.toml
//
// Example:
//
//	[carve]
//	format = "png"
//	cropped = true
//
//	[cache]
//	backend = "redis"
//	ttl = "24h"
//	redis_addr = "localhost:6379"
//
//	[serve]
//	addr = ":8080"
//	max_body_bytes = 33554432
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/seamcarve/pkg/errors"
)

const appName = "seamcarve"

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Config is the complete set of file-configurable settings.
type Config struct {
	Carve CarveConfig `toml:"carve"`
	Cache CacheConfig `toml:"cache"`
	Serve ServeConfig `toml:"serve"`
}

// CarveConfig holds defaults for the carve command.
type CarveConfig struct {
	Format  string `toml:"format"`
	Cropped bool   `toml:"cropped"`
}

// CacheConfig selects and tunes the result cache.
type CacheConfig struct {
	Backend   string   `toml:"backend"`
	Dir       string   `toml:"dir"`
	TTL       Duration `toml:"ttl"`
	RedisAddr string   `toml:"redis_addr"`
	RedisDB   int      `toml:"redis_db"`
}

// ServeConfig configures the HTTP service.
type ServeConfig struct {
	Addr         string `toml:"addr"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
	MaxPixels    int    `toml:"max_pixels"`
}

// Duration is a time.Duration that decodes from TOML strings like "24h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Carve: CarveConfig{Format: "ppm"},
		Cache: CacheConfig{
			Backend:   BackendFile,
			TTL:       Duration{7 * 24 * time.Hour},
			RedisAddr: "localhost:6379",
		},
		Serve: ServeConfig{
			Addr:         ":8080",
			MaxBodyBytes: 32 << 20,
			MaxPixels:    errors.MaxPixels,
		},
	}
}

// Path returns the default config file location.
func Path() (string, error) {
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		return filepath.Join(home, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads path on top of Default. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errors.New(errors.ErrCodeInvalidConfig, "unknown key %q in %s", undecoded[0].String(), path)
	}
	return cfg, cfg.Validate()
}

// LoadDefault loads the file at Path, falling back to Default when the
// location cannot be determined.
func LoadDefault() (Config, error) {
	path, err := Path()
	if err != nil {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks enumerated and numeric fields.
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case BackendFile, BackendRedis, BackendNone:
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"invalid cache backend: %q (must be one of: file, redis, none)", c.Cache.Backend)
	}
	if c.Cache.TTL.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache ttl cannot be negative")
	}
	if c.Cache.Backend == BackendRedis && c.Cache.RedisAddr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "redis_addr is required for the redis backend")
	}
	if c.Serve.MaxBodyBytes <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "max_body_bytes must be positive")
	}
	if c.Serve.MaxPixels <= 0 || c.Serve.MaxPixels > errors.MaxPixels {
		return errors.New(errors.ErrCodeInvalidConfig, "max_pixels must be in [1, %d]", errors.MaxPixels)
	}
	return nil
}

// Encode writes c as TOML. Used by "seamcarve config show".
func (c Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
