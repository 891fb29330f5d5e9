// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog"`
	Storage  StorageConfig  `yaml:"storage"`
	Playback PlaybackConfig `yaml:"playback"`
	Audio    AudioConfig    `yaml:"audio"`
	Log      LogConfig      `yaml:"log"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
}

// CatalogConfig represents catalog configuration.
type CatalogConfig struct {
	Path string `yaml:"path"` // empty: embedded default catalog
}

// StorageConfig represents favorites persistence configuration.
type StorageConfig struct {
	Type      string         `yaml:"type" default:"file" validate:"oneof=memory file redis"`
	SessionID string         `yaml:"session_id"` // empty: generated per run
	Settings  map[string]any `yaml:"settings"`
}

// PlaybackConfig represents playback engine configuration.
type PlaybackConfig struct {
	DefaultVolume    float64 `yaml:"default_volume" default:"0.7" validate:"gte=0,lte=1"`
	WrapOnRepeatNone bool    `yaml:"wrap_on_repeat_none"`
}

// AudioConfig represents audio output configuration.
type AudioConfig struct {
	Output          string `yaml:"output" default:"speaker" validate:"oneof=speaker silent"`
	BaseDir         string `yaml:"base_dir" default:"."`
	SampleRate      int    `yaml:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs        int    `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	TimeUpdateMs    int    `yaml:"time_update_ms" default:"250" validate:"gte=10,lte=5000"`
	FetchTimeoutSec int    `yaml:"fetch_timeout_sec" default:"30" validate:"gte=1,lte=600"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"file" validate:"oneof=stdout stderr file"`
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	File   string `yaml:"file" default:".sidebox/sidebox.log"`
}

// SpotifyConfig represents Spotify API configuration used by the catalog importer.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// Buffer returns the speaker buffer length.
func (a AudioConfig) Buffer() time.Duration {
	return time.Duration(a.BufferMs) * time.Millisecond
}

// TimeUpdateInterval returns the position update cadence.
func (a AudioConfig) TimeUpdateInterval() time.Duration {
	return time.Duration(a.TimeUpdateMs) * time.Millisecond
}

// FetchTimeout returns the remote source fetch timeout.
func (a AudioConfig) FetchTimeout() time.Duration {
	return time.Duration(a.FetchTimeoutSec) * time.Second
}

// Load loads configuration from a YAML file.
// An empty path yields the defaults. Environment variables take precedence
// over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SIDEBOX_SESSION_ID"); v != "" {
		c.Storage.SessionID = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		if c.Storage.Settings == nil {
			c.Storage.Settings = make(map[string]any)
		}
		c.Storage.Settings["password"] = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// ValidateSpotify checks the credentials needed by the catalog importer.
func (c *Config) ValidateSpotify() error {
	if c.Spotify.ClientID == "" {
		return errors.New("spotify client_id is required (or set SPOTIFY_CLIENT_ID)")
	}
	if c.Spotify.ClientSecret == "" {
		return errors.New("spotify client_secret is required (or set SPOTIFY_CLIENT_SECRET)")
	}
	return nil
}
