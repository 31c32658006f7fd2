package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesift/codesift/internal/chunk"
	"github.com/codesift/codesift/internal/embed"
	sifterrors "github.com/codesift/codesift/internal/errors"
	"github.com/codesift/codesift/internal/intake"
	"github.com/codesift/codesift/internal/store"
	"github.com/codesift/codesift/internal/summarize"
	"github.com/codesift/codesift/internal/vector"
)

// fakeSource serves files from memory; paths in unreadable error out
type fakeSource struct {
	files      []intake.FileEntry
	contents   map[string]string
	unreadable map[string]bool
}

func (f *fakeSource) ListFiles(ctx context.Context, projectID string) ([]intake.FileEntry, error) {
	return f.files, nil
}

func (f *fakeSource) ReadFile(projectID, relPath string) (string, error) {
	if f.unreadable[relPath] {
		return "", errors.New("permission denied")
	}
	content, ok := f.contents[relPath]
	if !ok {
		return "", sifterrors.New(sifterrors.ErrCodeFileNotFound, "file not found: "+relPath, nil)
	}
	return content, nil
}

// failingSummarizer always errors, forcing the fallback path
type failingSummarizer struct{}

func (failingSummarizer) Summarize(ctx context.Context, code, language, unitKind, unitName string) (*summarize.Result, error) {
	return nil, errors.New("model unreachable")
}
func (failingSummarizer) Available(ctx context.Context) bool { return false }
func (failingSummarizer) Close() error                       { return nil }

// markerEmbedder embeds statically but fails on texts holding a marker
type markerEmbedder struct {
	inner      embed.Embedder
	failMarker string
}

func (m *markerEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.failMarker != "" && strings.Contains(text, m.failMarker) {
		return nil, errors.New("embedding backend down")
	}
	return m.inner.Embed(ctx, text)
}

type testEnv struct {
	store     *store.SQLiteStore
	index     *vector.Index
	processor *Processor
	project   *store.Project
}

func newTestEnv(t *testing.T, source Source, failMarker string) *testEnv {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	project := &store.Project{Name: "demo"}
	require.NoError(t, s.CreateProject(ctx, project))

	chunker := chunk.NewChunker()
	t.Cleanup(chunker.Close)

	index := vector.NewIndex(0)

	processor := NewProcessor(ProcessorConfig{
		Store:      s,
		Source:     source,
		Chunker:    chunker,
		Summarizer: failingSummarizer{},
		Embedder:   &markerEmbedder{inner: embed.NewStaticEmbedder(), failMarker: failMarker},
		Index:      index,
		LockDir:    t.TempDir(),
	})

	return &testEnv{store: s, index: index, processor: processor, project: project}
}

const threeFunctions = `def alpha():
    return 1

def beta():
    return 2

def bad_embed_gamma():
    return 3`

func TestProcess_CountsWithMixedFailures(t *testing.T) {
	source := &fakeSource{
		files: []intake.FileEntry{
			{Path: "broken.py", Language: "python"},
			{Path: "main.py", Language: "python"},
		},
		contents:   map[string]string{"main.py": threeFunctions},
		unreadable: map[string]bool{"broken.py": true},
	}
	env := newTestEnv(t, source, "bad_embed")

	report, err := env.processor.Process(context.Background(), env.project.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalChunks)
	assert.Equal(t, 2, report.ProcessedChunks)

	var readFailures, embedFailures int
	for _, f := range report.Failures {
		switch f.Stage {
		case StageRead:
			readFailures++
			assert.Equal(t, "broken.py", f.FilePath)
		case StageEmbed:
			embedFailures++
			assert.Equal(t, "bad_embed_gamma", f.UnitName)
		}
	}
	assert.Equal(t, 1, readFailures)
	assert.Equal(t, 1, embedFailures)
}

func TestProcess_FallbackSummaryCountsAsSuccess(t *testing.T) {
	source := &fakeSource{
		files:    []intake.FileEntry{{Path: "main.py", Language: "python"}},
		contents: map[string]string{"main.py": "def foo():\n    return 1"},
	}
	env := newTestEnv(t, source, "")

	report, err := env.processor.Process(context.Background(), env.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalChunks)
	assert.Equal(t, 1, report.ProcessedChunks)
	assert.Empty(t, report.Failures)

	chunks, err := env.store.ListChunksByProject(context.Background(), env.project.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, "# Function foo in python", c.Summary)
	assert.Equal(t, c.Summary+"\n\n"+c.Code, c.Combined)
	assert.Equal(t, summarize.WordCount(c.Code)+summarize.WordCount(c.Summary), c.Tokens)
}

func TestProcess_VectorIDEqualsChunkID(t *testing.T) {
	source := &fakeSource{
		files:    []intake.FileEntry{{Path: "main.py", Language: "python"}},
		contents: map[string]string{"main.py": "def foo():\n    return 1"},
	}
	env := newTestEnv(t, source, "")

	_, err := env.processor.Process(context.Background(), env.project.ID)
	require.NoError(t, err)

	chunks, err := env.store.ListChunksByProject(context.Background(), env.project.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, chunks[0].ID, chunks[0].VectorID)
	assert.True(t, env.index.Contains(chunks[0].ID))
}

func TestProcess_EmbedFailureLeavesPartialChunk(t *testing.T) {
	source := &fakeSource{
		files:    []intake.FileEntry{{Path: "main.py", Language: "python"}},
		contents: map[string]string{"main.py": "def bad_embed():\n    return 1"},
	}
	env := newTestEnv(t, source, "bad_embed")

	report, err := env.processor.Process(context.Background(), env.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalChunks)
	assert.Equal(t, 0, report.ProcessedChunks)

	// The chunk stops at the embed step: summary written, vector never
	// linked, nothing in the index.
	chunks, err := env.store.ListChunksByProject(context.Background(), env.project.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.NotEmpty(t, chunks[0].Summary)
	assert.Empty(t, chunks[0].VectorID)
	assert.Equal(t, 0, env.index.Count())
}

func TestProcess_ProjectNotFound(t *testing.T) {
	source := &fakeSource{}
	env := newTestEnv(t, source, "")

	_, err := env.processor.Process(context.Background(), "no-such-project")
	require.Error(t, err)
	assert.True(t, sifterrors.IsNotFound(err))
}

func TestProcess_ReprocessingDuplicatesChunks(t *testing.T) {
	source := &fakeSource{
		files:    []intake.FileEntry{{Path: "main.py", Language: "python"}},
		contents: map[string]string{"main.py": "def foo():\n    return 1"},
	}
	env := newTestEnv(t, source, "")
	ctx := context.Background()

	_, err := env.processor.Process(ctx, env.project.ID)
	require.NoError(t, err)
	_, err = env.processor.Process(ctx, env.project.ID)
	require.NoError(t, err)

	chunks, err := env.store.ListChunksByProject(ctx, env.project.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
	assert.Equal(t, 2, env.index.Count())
}

func TestProcess_OrderFollowsChunker(t *testing.T) {
	source := &fakeSource{
		files:    []intake.FileEntry{{Path: "main.py", Language: "python"}},
		contents: map[string]string{"main.py": threeFunctions},
	}
	env := newTestEnv(t, source, "")

	_, err := env.processor.Process(context.Background(), env.project.ID)
	require.NoError(t, err)

	chunks, err := env.store.ListChunksByProject(context.Background(), env.project.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "alpha", chunks[0].UnitName)
	assert.Equal(t, "beta", chunks[1].UnitName)
	assert.Equal(t, "bad_embed_gamma", chunks[2].UnitName)
}

func TestProcess_SavesVectorIndex(t *testing.T) {
	source := &fakeSource{
		files:    []intake.FileEntry{{Path: "main.py", Language: "python"}},
		contents: map[string]string{"main.py": "def foo():\n    return 1"},
	}
	env := newTestEnv(t, source, "")
	vectorPath := filepath.Join(t.TempDir(), "vectors.hnsw")
	env.processor.vectorPath = vectorPath

	_, err := env.processor.Process(context.Background(), env.project.ID)
	require.NoError(t, err)

	loaded := vector.NewIndex(0)
	defer loaded.Close()
	require.NoError(t, loaded.Load(vectorPath))
	assert.Equal(t, 1, loaded.Count())
}

func TestSearcher_EndToEnd(t *testing.T) {
	files := map[string]string{
		"orders.py": "def process_order(order_id):\n    return fetch_order(order_id)",
		"auth.py":   "def verify_password(password, digest):\n    return hash_password(password) == digest",
	}
	source := &fakeSource{
		files: []intake.FileEntry{
			{Path: "auth.py", Language: "python"},
			{Path: "orders.py", Language: "python"},
		},
		contents: files,
	}
	env := newTestEnv(t, source, "")
	ctx := context.Background()

	_, err := env.processor.Process(ctx, env.project.ID)
	require.NoError(t, err)

	searcher := NewSearcher(&markerEmbedder{inner: embed.NewStaticEmbedder()}, env.index, 50)

	results, err := searcher.Search(ctx, "process an order", 5, env.project.ID)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "orders.py", results[0].Payload.FilePath)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearcher_LimitCappedAndFiltered(t *testing.T) {
	env := newTestEnv(t, &fakeSource{}, "")
	embedder := &markerEmbedder{inner: embed.NewStaticEmbedder()}

	// Two vectors for the filtered project, three for another.
	for i := 0; i < 2; i++ {
		vec, err := embedder.Embed(context.Background(), fmt.Sprintf("p1 text %d", i))
		require.NoError(t, err)
		require.NoError(t, env.index.Upsert(fmt.Sprintf("p1-%d", i), vec, vector.Payload{ProjectID: "p1"}))
	}
	for i := 0; i < 3; i++ {
		vec, err := embedder.Embed(context.Background(), fmt.Sprintf("p2 text %d", i))
		require.NoError(t, err)
		require.NoError(t, env.index.Upsert(fmt.Sprintf("p2-%d", i), vec, vector.Payload{ProjectID: "p2"}))
	}

	searcher := NewSearcher(embedder, env.index, 50)
	results, err := searcher.Search(context.Background(), "text", 5, "p1")
	require.NoError(t, err)
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "p1", r.Payload.ProjectID)
	}
}

func TestSearcher_EmptyQuery(t *testing.T) {
	env := newTestEnv(t, &fakeSource{}, "")
	searcher := NewSearcher(&markerEmbedder{inner: embed.NewStaticEmbedder()}, env.index, 50)

	_, err := searcher.Search(context.Background(), "", 5, "")
	require.Error(t, err)
}
