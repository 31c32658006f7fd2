// Package pipeline drives chunk enrichment: persist, summarize, embed,
// index, link. Runs are strictly sequential, file by file, chunk by chunk.
// Per-chunk failures are collected into the run report; only project
// lookup and file listing failures abort a run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/codesift/codesift/internal/chunk"
	"github.com/codesift/codesift/internal/intake"
	"github.com/codesift/codesift/internal/store"
	"github.com/codesift/codesift/internal/summarize"
	"github.com/codesift/codesift/internal/vector"
)

// Chunker splits a file into drafts
type Chunker interface {
	Chunk(ctx context.Context, filePath, fileText, language string) []chunk.Draft
}

// Source provides a project's files
type Source interface {
	ListFiles(ctx context.Context, projectID string) ([]intake.FileEntry, error)
	ReadFile(projectID, relPath string) (string, error)
}

// Embedder is the vector-producing collaborator
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the similarity index the pipeline writes to
type VectorIndex interface {
	Upsert(id string, vec []float32, payload vector.Payload) error
	Search(query []float32, limit int, projectID string) ([]vector.Result, error)
	Save(path string) error
}

// Processor runs the enrichment pipeline for one project at a time
type Processor struct {
	store      store.MetadataStore
	source     Source
	chunker    Chunker
	summarizer summarize.Summarizer
	embedder   Embedder
	index      VectorIndex
	logger     *slog.Logger

	// vectorPath, when set, is where the index is saved after a run
	vectorPath string
	// lockDir holds the per-project process locks
	lockDir string
}

// ProcessorConfig wires a Processor's collaborators
type ProcessorConfig struct {
	Store      store.MetadataStore
	Source     Source
	Chunker    Chunker
	Summarizer summarize.Summarizer
	Embedder   Embedder
	Index      VectorIndex
	Logger     *slog.Logger
	VectorPath string
	LockDir    string
}

// NewProcessor creates a Processor
func NewProcessor(cfg ProcessorConfig) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lockDir := cfg.LockDir
	if lockDir == "" {
		lockDir = os.TempDir()
	}
	return &Processor{
		store:      cfg.Store,
		source:     cfg.Source,
		chunker:    cfg.Chunker,
		summarizer: cfg.Summarizer,
		embedder:   cfg.Embedder,
		index:      cfg.Index,
		logger:     logger,
		vectorPath: cfg.VectorPath,
		lockDir:    lockDir,
	}
}

// Process enriches every chunk of every file in the project. It always
// returns a report when the project and its file list are reachable;
// individual chunk and file failures are logged and recorded, never
// propagated. Re-running on the same project re-chunks and re-persists
// without deduplicating earlier runs.
func (p *Processor) Process(ctx context.Context, projectID string) (*Report, error) {
	lock, err := p.acquireProjectLock(projectID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("release project lock failed",
				slog.String("project_id", projectID),
				slog.String("error", err.Error()))
		}
	}()

	project, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	files, err := p.source.ListFiles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project files: %w", err)
	}

	p.logger.Info("processing started",
		slog.String("project_id", project.ID),
		slog.Int("files", len(files)))

	report := &Report{}
	for _, file := range files {
		p.processFile(ctx, projectID, file, report)
	}

	if p.vectorPath != "" {
		if err := p.index.Save(p.vectorPath); err != nil {
			p.logger.Error("vector index save failed",
				slog.String("path", p.vectorPath),
				slog.String("error", err.Error()))
		}
	}

	p.logger.Info("processing finished",
		slog.String("project_id", project.ID),
		slog.Int("total_chunks", report.TotalChunks),
		slog.Int("processed_chunks", report.ProcessedChunks),
		slog.Int("failures", len(report.Failures)))

	return report, nil
}

// processFile reads, chunks, and enriches one file. A read failure
// skips the whole file; everything already recorded for it stays.
func (p *Processor) processFile(ctx context.Context, projectID string, file intake.FileEntry, report *Report) {
	text, err := p.source.ReadFile(projectID, file.Path)
	if err != nil {
		p.logger.Warn("file read failed, skipping",
			slog.String("file", file.Path),
			slog.String("error", err.Error()))
		report.recordFailure(file.Path, "", StageRead, err)
		return
	}

	drafts := p.chunker.Chunk(ctx, file.Path, text, file.Language)
	report.TotalChunks += len(drafts)

	for _, draft := range drafts {
		if failure := p.processChunk(ctx, projectID, file, draft); failure != nil {
			p.logger.Warn("chunk enrichment failed",
				slog.String("file", failure.FilePath),
				slog.String("unit", failure.UnitName),
				slog.String("stage", string(failure.Stage)),
				slog.String("error", failure.Err.Error()))
			report.Failures = append(report.Failures, *failure)
			continue
		}
		report.ProcessedChunks++
	}
}

// processChunk walks one draft through the write order: metadata
// create, summarize, embed, vector write, metadata link. A failure at
// any step abandons the chunk where it stands; the partially written
// record stays in the metadata store.
func (p *Processor) processChunk(ctx context.Context, projectID string, file intake.FileEntry, draft chunk.Draft) *ChunkFailure {
	fail := func(stage Stage, err error) *ChunkFailure {
		return &ChunkFailure{
			FilePath: file.Path,
			UnitName: draft.UnitName,
			Stage:    stage,
			Err:      err,
		}
	}

	record := &store.Chunk{
		ProjectID: projectID,
		UnitName:  draft.UnitName,
		FilePath:  file.Path,
		Language:  file.Language,
		UnitKind:  string(draft.UnitKind),
		Code:      draft.Code,
	}
	if err := p.store.CreateChunk(ctx, record); err != nil {
		return fail(StageStore, err)
	}

	result, err := p.summarizer.Summarize(ctx, draft.Code, file.Language, string(draft.UnitKind), draft.UnitName)
	if err != nil {
		p.logger.Warn("summarization failed, using fallback",
			slog.String("file", file.Path),
			slog.String("unit", draft.UnitName),
			slog.String("error", err.Error()))
		result = summarize.Fallback(draft.Code, file.Language, string(draft.UnitKind), draft.UnitName)
	}

	if err := p.store.UpdateChunkSummary(ctx, record.ID, result.Summary, result.Combined, result.Tokens); err != nil {
		return fail(StageStore, err)
	}

	vec, err := p.embedder.Embed(ctx, result.Combined)
	if err != nil {
		return fail(StageEmbed, err)
	}

	payload := vector.Payload{
		ProjectID: projectID,
		FilePath:  file.Path,
		UnitName:  draft.UnitName,
		Language:  file.Language,
		UnitKind:  string(draft.UnitKind),
		Summary:   result.Summary,
		Code:      draft.Code,
		Combined:  result.Combined,
		Tokens:    result.Tokens,
		Tested:    record.Tested,
		CreatedAt: record.CreatedAt,
	}
	// The chunk's own ID is the vector key; it is the only join between
	// the two stores.
	if err := p.index.Upsert(record.ID, vec, payload); err != nil {
		return fail(StageVector, err)
	}

	if err := p.store.UpdateChunkVectorID(ctx, record.ID, record.ID); err != nil {
		return fail(StageLink, err)
	}

	return nil
}

// acquireProjectLock takes the cross-process lock for a project so two
// invocations cannot interleave one project's pipeline.
func (p *Processor) acquireProjectLock(projectID string) (*flock.Flock, error) {
	if err := os.MkdirAll(p.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(filepath.Join(p.lockDir, "codesift-"+projectID+".lock"))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquire project lock: %w", err)
	}
	return lock, nil
}
