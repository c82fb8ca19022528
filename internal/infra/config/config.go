// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Playback PlaybackConfig `yaml:"playback"`
	Audio    AudioConfig    `yaml:"audio"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
}

// ServerConfig configures the remote UI bridge.
type ServerConfig struct {
	Addr  string `yaml:"addr" default:":8080" validate:"required"`
	Token string `yaml:"token"`
}

// PlaybackConfig configures streaming and session handling.
type PlaybackConfig struct {
	FlushIntervalMs    int `yaml:"flush_interval_ms" default:"100" validate:"gte=1,lte=10000"`
	InitialFlushBytes  int `yaml:"initial_flush_bytes" default:"65536" validate:"gte=1"`
	ReadChunkBytes     int `yaml:"read_chunk_bytes" default:"16384" validate:"gte=512"`
	ProgressIntervalMs int `yaml:"progress_interval_ms" default:"250" validate:"gte=10,lte=10000"`
	FetchTimeoutMs     int `yaml:"fetch_timeout_ms" default:"15000" validate:"gte=100"`
}

// AudioConfig configures the output device.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs   int `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
}

// CatalogConfig lists catalog providers in lookup order.
type CatalogConfig struct {
	Providers []ProviderConfig `yaml:"providers" validate:"required,min=1,dive"`
}

// ProviderConfig represents a single catalog provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=spotify web library lastfm"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// SpotifyConfig represents Spotify API configuration.
// Credentials are only required when a spotify or lastfm provider is configured.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// Load loads configuration from a YAML file.
// A .env file next to the working directory is loaded first if present.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		for i := range c.Catalog.Providers {
			if c.Catalog.Providers[i].Type == "lastfm" {
				if c.Catalog.Providers[i].Settings == nil {
					c.Catalog.Providers[i].Settings = map[string]any{}
				}
				c.Catalog.Providers[i].Settings["api_key"] = v
				break
			}
		}
	}
	if v := os.Getenv("KRUNA_BRIDGE_TOKEN"); v != "" {
		c.Server.Token = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.NeedsSpotify() {
		if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" || c.Spotify.RefreshToken == "" {
			return errors.New("spotify client_id, client_secret and refresh_token are required by the configured providers")
		}
	}
	return nil
}

// NeedsSpotify reports whether any configured provider talks to Spotify.
func (c *Config) NeedsSpotify() bool {
	for _, p := range c.Catalog.Providers {
		if p.Type == "spotify" || p.Type == "lastfm" {
			return true
		}
	}
	return false
}

// FlushInterval returns the rate limiter refill interval.
func (p PlaybackConfig) FlushInterval() time.Duration {
	return time.Duration(p.FlushIntervalMs) * time.Millisecond
}

// ProgressInterval returns the transport progress tick.
func (p PlaybackConfig) ProgressInterval() time.Duration {
	return time.Duration(p.ProgressIntervalMs) * time.Millisecond
}

// FetchTimeout returns the track resolution timeout.
func (p PlaybackConfig) FetchTimeout() time.Duration {
	return time.Duration(p.FetchTimeoutMs) * time.Millisecond
}

// BufferSize returns the device buffer length.
func (a AudioConfig) BufferSize() time.Duration {
	return time.Duration(a.BufferMs) * time.Millisecond
}
