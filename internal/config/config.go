package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"llmd/pkg/types"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by defaults in ApplyDefaults.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	// MaxBodyBytes caps JSON request bodies; zero keeps the built-in 1 MiB.
	MaxBodyBytes int64               `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	Models       []types.ModelConfig `json:"models" yaml:"models" toml:"models"`

	RateLimit struct {
		WindowMs    int64 `json:"window_ms" yaml:"window_ms" toml:"window_ms"`
		MaxRequests int   `json:"max_requests" yaml:"max_requests" toml:"max_requests"`
	} `json:"rate_limit" yaml:"rate_limit" toml:"rate_limit"`

	Training struct {
		DataDir       string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
		CheckpointDir string `json:"checkpoint_dir" yaml:"checkpoint_dir" toml:"checkpoint_dir"`
	} `json:"training" yaml:"training" toml:"training"`

	Log struct {
		Level string `json:"level" yaml:"level" toml:"level"`
		// File enables rotated file output when set; stderr otherwise.
		File string `json:"file" yaml:"file" toml:"file"`
	} `json:"log" yaml:"log" toml:"log"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyDefaults fills unspecified fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.RateLimit.WindowMs <= 0 {
		c.RateLimit.WindowMs = time.Minute.Milliseconds()
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = 60
	}
	if c.Training.DataDir == "" {
		c.Training.DataDir = "data/training"
	}
	if c.Training.CheckpointDir == "" {
		c.Training.CheckpointDir = "data/checkpoints"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// RateLimitWindow returns the sliding window as a duration.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowMs) * time.Millisecond
}
