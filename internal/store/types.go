// Package store persists projects, files, and chunks in SQLite. It is
// the record of truth for chunk existence and enrichment state; the
// vector index is a derived projection of it.
package store

import (
	"context"
	"time"
)

// Project is a registered codebase
type Project struct {
	ID            string
	Name          string
	Description   string
	SourceLocator string
	Language      string
	CreatedAt     time.Time
}

// File is one source file registered under a project. (ProjectID, Path)
// is unique; re-registering the same path updates the language in place.
type File struct {
	ID        string
	ProjectID string
	Path      string
	Language  string
	CreatedAt time.Time
}

// Chunk is one indexable unit of code with its enrichment state.
// Summary, Combined, and Tokens are set together or not at all; VectorID
// is set last and equals the chunk's own ID once the vector is written.
type Chunk struct {
	ID        string
	ProjectID string
	UnitName  string
	FilePath  string
	Language  string
	UnitKind  string
	Code      string
	Summary   string
	Combined  string
	Tokens    int
	VectorID  string
	Tested    bool
	CreatedAt time.Time
}

// MetadataStore persists project, file, and chunk metadata.
type MetadataStore interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	DeleteProject(ctx context.Context, id string) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	ListFilesByProject(ctx context.Context, projectID string) ([]*File, error)

	// Chunk operations
	CreateChunk(ctx context.Context, chunk *Chunk) error
	UpdateChunkSummary(ctx context.Context, id, summary, combined string, tokens int) error
	UpdateChunkVectorID(ctx context.Context, id, vectorID string) error
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	ListChunksByProject(ctx context.Context, projectID string) ([]*Chunk, error)

	Close() error
}
