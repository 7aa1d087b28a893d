package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all Verba configuration.
type Config struct {
	DBPath string       `yaml:"db_path"`
	Ollama OllamaConfig `yaml:"ollama"`
	Cache  CacheConfig  `yaml:"cache"`
}

// OllamaConfig defines the upstream Ollama server and models.
type OllamaConfig struct {
	URL         string  `yaml:"url"`
	Model       string  `yaml:"model"`
	EmbedModel  string  `yaml:"embed_model"`
	Temperature float64 `yaml:"temperature"`
}

// CacheConfig controls the semantic response cache.
// HighThreshold gates the in-memory fast path; LowThreshold gates the
// database fallback scan. HighThreshold must not be below LowThreshold.
type CacheConfig struct {
	Enabled       bool    `yaml:"enabled"`
	HighThreshold float64 `yaml:"high_threshold"`
	LowThreshold  float64 `yaml:"low_threshold"`
	TopK          int     `yaml:"top_k"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath: "verba.db",
		Ollama: OllamaConfig{
			URL:         "http://localhost:11434",
			Model:       "llama3.2",
			EmbedModel:  "all-minilm",
			Temperature: 0.9,
		},
		Cache: CacheConfig{
			Enabled:       true,
			HighThreshold: 0.75,
			LowThreshold:  0.60,
			TopK:          5,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Cache.HighThreshold < cfg.Cache.LowThreshold {
		return nil, fmt.Errorf("config: cache high_threshold %.2f below low_threshold %.2f",
			cfg.Cache.HighThreshold, cfg.Cache.LowThreshold)
	}

	return cfg, nil
}
