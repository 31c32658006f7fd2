package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesift/codesift/internal/config"
	"github.com/codesift/codesift/internal/store"
	"github.com/codesift/codesift/internal/vector"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Workspace.Dir = filepath.Join(dir, "workspace")
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Storage.MetadataPath = filepath.Join(dir, "data", "metadata.db")
	cfg.Storage.VectorPath = filepath.Join(dir, "data", "vectors.hnsw")
	cfg.Embeddings.Provider = "static"
	return cfg
}

func TestNewAndClose(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)

	assert.NotNil(t, svc.Store)
	assert.NotNil(t, svc.Index)
	assert.NotNil(t, svc.Embedder)
	assert.NotNil(t, svc.Processor)
	assert.NotNil(t, svc.Searcher)
	assert.Equal(t, "static-hash-v1", svc.Embedder.ModelName())

	require.NoError(t, svc.Close())
}

func TestNew_ReloadsSavedIndex(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	svc, err := New(ctx, cfg, nil)
	require.NoError(t, err)

	p := &store.Project{Name: "demo"}
	require.NoError(t, svc.Store.CreateProject(ctx, p))

	vec, err := svc.Embedder.Embed(ctx, "persisted text")
	require.NoError(t, err)
	require.NoError(t, svc.Index.Upsert("chunk-1", vec, vector.Payload{ProjectID: p.ID}))
	require.NoError(t, svc.Index.Save(cfg.Storage.VectorPath))
	require.NoError(t, svc.Close())

	reopened, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 1, reopened.Index.Count())
	assert.True(t, reopened.Index.Contains("chunk-1"))
}
