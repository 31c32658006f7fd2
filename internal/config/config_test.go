package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.NotEmpty(t, cfg.Workspace.Dir)
	assert.NotEmpty(t, cfg.Storage.DataDir)
	assert.Equal(t, "http://localhost:11434", cfg.Summarizer.OllamaHost)
	assert.Equal(t, "qwen3:0.6b", cfg.Summarizer.Model)
	assert.Equal(t, 30*time.Second, cfg.Summarizer.TimeoutDuration())
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)
	assert.Equal(t, 1000, cfg.Embeddings.CacheSize)
	assert.Equal(t, 50, cfg.Search.MaxResults)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestTimeoutDuration_Invalid(t *testing.T) {
	sc := SummarizerConfig{Timeout: "not-a-duration"}
	assert.Equal(t, 30*time.Second, sc.TimeoutDuration())

	sc = SummarizerConfig{Timeout: "5s"}
	assert.Equal(t, 5*time.Second, sc.TimeoutDuration())
}

func TestLoadFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := NewConfig()
	cfg.Workspace.Dir = filepath.Join(dir, "ws")
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Storage.MetadataPath = ""
	cfg.Storage.VectorPath = ""
	cfg.Embeddings.Provider = "static"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Workspace.Dir, loaded.Workspace.Dir)
	assert.Equal(t, "static", loaded.Embeddings.Provider)
	assert.Equal(t, filepath.Join(dir, "data", "metadata.db"), loaded.Storage.MetadataPath)
	assert.Equal(t, filepath.Join(dir, "data", "vectors.hnsw"), loaded.Storage.VectorPath)
}

func TestLoadFile_PartialOverridesKeepDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  max_results: 10\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty workspace dir",
			mutate:  func(c *Config) { c.Workspace.Dir = "" },
			wantErr: "workspace.dir",
		},
		{
			name:    "unknown embed provider",
			mutate:  func(c *Config) { c.Embeddings.Provider = "qdrant" },
			wantErr: "embeddings.provider",
		},
		{
			name:    "zero max results",
			mutate:  func(c *Config) { c.Search.MaxResults = 0 },
			wantErr: "max_results",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CODESIFT_DATA_DIR", "/tmp/codesift-test-data")
	t.Setenv("CODESIFT_EMBEDDER", "static")
	t.Setenv("CODESIFT_LOG_LEVEL", "debug")

	cfg := NewConfig()
	cfg.applyEnvOverrides()
	cfg.applyDerivedDefaults()

	assert.Equal(t, "/tmp/codesift-test-data", cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join("/tmp/codesift-test-data", "metadata.db"), cfg.Storage.MetadataPath)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
