// Package config provides layered configuration for codesift.
//
// Precedence, lowest to highest: built-in defaults, the user config file
// (~/.config/codesift/config.yaml or $XDG_CONFIG_HOME), then CODESIFT_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete codesift configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Workspace  WorkspaceConfig  `yaml:"workspace" json:"workspace"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Summarizer SummarizerConfig `yaml:"summarizer" json:"summarizer"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// WorkspaceConfig configures where project sources are materialized.
type WorkspaceConfig struct {
	// Dir is the root directory holding one subdirectory per project.
	Dir string `yaml:"dir" json:"dir"`
}

// StorageConfig configures the metadata store and vector index files.
type StorageConfig struct {
	// DataDir is the root directory for persisted index data.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// MetadataPath is the SQLite database path. Defaults to
	// <data_dir>/metadata.db.
	MetadataPath string `yaml:"metadata_path" json:"metadata_path"`
	// VectorPath is the vector index path. Defaults to
	// <data_dir>/vectors.hnsw.
	VectorPath string `yaml:"vector_path" json:"vector_path"`
}

// SummarizerConfig configures the summarization collaborator.
type SummarizerConfig struct {
	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// Model is the LLM used for chunk summaries (default: qwen3:0.6b).
	Model string `yaml:"model" json:"model"`
	// Timeout is the per-chunk summarization timeout (default: 30s).
	// Summarization must never block indefinitely; on timeout the
	// pipeline substitutes its deterministic fallback summary.
	Timeout string `yaml:"timeout" json:"timeout"`
}

// TimeoutDuration parses the summarizer timeout, falling back to 30s.
func (c SummarizerConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// EmbeddingsConfig configures the embedding collaborator.
type EmbeddingsConfig struct {
	// Provider selects the backend: "ollama" or "static".
	// Empty auto-detects: Ollama when reachable, otherwise static.
	Provider string `yaml:"provider" json:"provider"`
	// Model is the embedding model name (default: nomic-embed-text).
	Model string `yaml:"model" json:"model"`
	// Dimensions is the embedding dimension; 0 auto-detects from the
	// embedder. All vectors in one index share one dimension.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// BatchSize is texts per embedding request (default: 32).
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// CacheSize is the LRU embedding cache entry count (default: 1000).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// SearchConfig configures similarity search.
type SearchConfig struct {
	// MaxResults caps the limit a caller may request (default: 50).
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Workspace: WorkspaceConfig{
			Dir: filepath.Join(defaultHomeDir(), "workspace"),
		},
		Storage: StorageConfig{
			DataDir: filepath.Join(defaultHomeDir(), "data"),
		},
		Summarizer: SummarizerConfig{
			OllamaHost: "http://localhost:11434",
			Model:      "qwen3:0.6b",
			Timeout:    "30s",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "",
			Model:      "nomic-embed-text",
			Dimensions: 0,
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
		},
		Search: SearchConfig{
			MaxResults: 50,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// defaultHomeDir returns the codesift home directory (~/.codesift).
func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".codesift")
	}
	return filepath.Join(home, ".codesift")
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/codesift/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/codesift/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codesift", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "codesift", "config.yaml")
	}
	return filepath.Join(home, ".config", "codesift", "config.yaml")
}

// Load builds the effective configuration: defaults, then the user config
// file if present, then environment overrides.
func Load() (*Config, error) {
	cfg := NewConfig()

	path := GetUserConfigPath()
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.applyEnvOverrides()
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads configuration from a YAML file, layered over defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDerivedDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML to the given path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides applies CODESIFT_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODESIFT_WORKSPACE_DIR"); v != "" {
		c.Workspace.Dir = v
	}
	if v := os.Getenv("CODESIFT_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
		c.Storage.MetadataPath = ""
		c.Storage.VectorPath = ""
	}
	if v := os.Getenv("CODESIFT_OLLAMA_HOST"); v != "" {
		c.Summarizer.OllamaHost = v
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("CODESIFT_SUMMARIZER_MODEL"); v != "" {
		c.Summarizer.Model = v
	}
	if v := os.Getenv("CODESIFT_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("CODESIFT_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CODESIFT_EMBED_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embeddings.Dimensions = n
		}
	}
	if v := os.Getenv("CODESIFT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// applyDerivedDefaults fills paths derived from DataDir when unset.
func (c *Config) applyDerivedDefaults() {
	if c.Storage.MetadataPath == "" {
		c.Storage.MetadataPath = filepath.Join(c.Storage.DataDir, "metadata.db")
	}
	if c.Storage.VectorPath == "" {
		c.Storage.VectorPath = filepath.Join(c.Storage.DataDir, "vectors.hnsw")
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Workspace.Dir == "" {
		return fmt.Errorf("workspace.dir must not be empty")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	switch c.Embeddings.Provider {
	case "", "ollama", "static":
	default:
		return fmt.Errorf("embeddings.provider must be one of: ollama, static (got %q)", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize < 0 {
		return fmt.Errorf("embeddings.batch_size must not be negative")
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive")
	}
	return nil
}
