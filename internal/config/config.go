// Package config provides configuration loading and structs for the Lectio server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Commentary CommentaryConfig `yaml:"commentary"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	Sources    []SourceConfig   `yaml:"sources"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RatePerSecond and RateBurst bound generation requests per client IP.
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

// StorageConfig holds the database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// RetrievalConfig holds chunking and query settings.
type RetrievalConfig struct {
	ChunkSize    int `yaml:"chunk_size"`    // target chunk length in characters
	ChunkOverlap int `yaml:"chunk_overlap"` // overlap between consecutive chunks in characters
	MinTextLen   int `yaml:"min_text_len"`  // minimum raw text length accepted by ingest
	DefaultTopK  int `yaml:"default_top_k"`
}

// CommentaryConfig holds the quality-score and regeneration policy.
type CommentaryConfig struct {
	NeutralScore   float64 `yaml:"neutral_score"`
	RegenThreshold float64 `yaml:"regen_threshold"`
	MinRatings     int     `yaml:"min_ratings"`
}

// OllamaConfig holds the text-generation endpoint settings.
type OllamaConfig struct {
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	Timeout      time.Duration `yaml:"timeout"`
	NumPredict   int           `yaml:"num_predict"`
	Temperature  float64       `yaml:"temperature"`
	TopP         float64       `yaml:"top_p"`
}

// SourceConfig maps a source ID to the directory holding its corpus files.
type SourceConfig struct {
	ID        string `yaml:"id"`
	Directory string `yaml:"directory"`
}

// WatchConfig holds corpus directory watch settings.
type WatchConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Extensions []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, applies defaults, and
// expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Sources {
		cfg.Sources[i].Directory = expandPath(cfg.Sources[i].Directory, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies LECTIO_OLLAMA_URL and LECTIO_OLLAMA_MODEL from
// the environment (populated from .env when present) over the file config.
func ApplyEnvOverrides(cfg *Config) {
	if url := os.Getenv("LECTIO_OLLAMA_URL"); url != "" {
		cfg.Ollama.BaseURL = strings.TrimRight(url, "/")
	}
	if model := os.Getenv("LECTIO_OLLAMA_MODEL"); model != "" {
		cfg.Ollama.DefaultModel = model
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
