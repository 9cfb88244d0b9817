// Package config provides configuration loading and structs for the GeoCopilot server.
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
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Provider ProviderConfig `yaml:"provider"`
	Vector   VectorConfig   `yaml:"vector"`
	Query    QueryConfig    `yaml:"query"`
	Persist  PersistConfig  `yaml:"persist"`
	History  HistoryConfig  `yaml:"history"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the index snapshot, metadata snapshot,
// export artifacts, and the optional import drop directory.
type StorageConfig struct {
	IndexPath    string `yaml:"index_path"`
	MetadataPath string `yaml:"metadata_path"`
	ExportDir    string `yaml:"export_dir"`
	ImportDir    string `yaml:"import_dir"`
}

// ProviderConfig holds settings for the embedding and chat provider.
// The API key itself never appears in config; only the name of the
// environment variable holding it.
type ProviderConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CacheSize      int    `yaml:"cache_size"`
}

// Timeout returns the provider HTTP client timeout.
func (p *ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// VectorConfig holds vector index settings.
type VectorConfig struct {
	IndexType  string `yaml:"index_type"`
	Dimensions int    `yaml:"dimensions"`
}

// QueryConfig holds query normalization settings.
type QueryConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
}

// PersistConfig holds background saver and pool sweeper timings.
type PersistConfig struct {
	SaveIntervalSeconds int `yaml:"save_interval_seconds"`
	PoolSweepSeconds    int `yaml:"pool_sweep_seconds"`
	PoolIdleSeconds     int `yaml:"pool_idle_seconds"`
}

// SaveInterval returns how often index and metadata snapshots are written.
func (p *PersistConfig) SaveInterval() time.Duration {
	return time.Duration(p.SaveIntervalSeconds) * time.Second
}

// SweepInterval returns how often the staging pool is checked.
func (p *PersistConfig) SweepInterval() time.Duration {
	return time.Duration(p.PoolSweepSeconds) * time.Second
}

// PoolIdleTimeout returns how long the pool must be quiet before draining.
func (p *PersistConfig) PoolIdleTimeout() time.Duration {
	return time.Duration(p.PoolIdleSeconds) * time.Second
}

// HistoryConfig holds activity log settings.
type HistoryConfig struct {
	DatabasePath string `yaml:"database_path"`
	Enabled      *bool  `yaml:"enabled"`
}

// EnabledOrDefault returns whether history recording is on; defaults to true when unset.
func (h *HistoryConfig) EnabledOrDefault() bool {
	if h.Enabled != nil {
		return *h.Enabled
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
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
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.MetadataPath = expandPath(cfg.Storage.MetadataPath, configDir)
	cfg.Storage.ExportDir = expandPath(cfg.Storage.ExportDir, configDir)
	if cfg.Storage.ImportDir != "" {
		cfg.Storage.ImportDir = expandPath(cfg.Storage.ImportDir, configDir)
	}
	cfg.History.DatabasePath = expandPath(cfg.History.DatabasePath, configDir)

	return &cfg, nil
}

// Save writes the config to path. Used by the init subcommand to seed a config file.
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

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
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
