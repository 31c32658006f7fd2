package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	sifterrors "github.com/codesift/codesift/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    description    TEXT,
    source_locator TEXT,
    language       TEXT,
    created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS files (
    id         TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    path       TEXT NOT NULL,
    language   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (project_id, path)
);

CREATE TABLE IF NOT EXISTS chunks (
    id         TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    unit_name  TEXT,
    file_path  TEXT NOT NULL,
    language   TEXT NOT NULL DEFAULT '',
    unit_kind  TEXT NOT NULL,
    code       TEXT NOT NULL,
    summary    TEXT,
    combined   TEXT,
    tokens     INTEGER,
    vector_id  TEXT,
    tested     INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_files_project ON files(project_id);
CREATE INDEX IF NOT EXISTS idx_chunks_project ON chunks(project_id);
`

// SQLiteStore implements MetadataStore on SQLite via the pure-Go
// modernc driver. The pooled *sql.DB is shared across all callers.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path and
// initializes the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("create store directory: %w", err))
	}

	// Pragmas go in the DSN so the driver applies them to every pooled
	// connection; a plain Exec would configure only one.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("open database: %w", err))
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("init schema: %w", err))
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateProject inserts a new project. A missing ID or CreatedAt is
// filled in before the write.
func (s *SQLiteStore) CreateProject(ctx context.Context, project *Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, source_locator, language, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		project.ID, project.Name,
		nullString(project.Description),
		nullString(project.SourceLocator),
		nullString(project.Language),
		project.CreatedAt,
	)
	if err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("create project: %w", err))
	}
	return nil
}

// GetProject fetches a project by ID
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, source_locator, language, created_at
		 FROM projects WHERE id = ?`, id)

	project, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, sifterrors.NotFound(fmt.Sprintf("project not found: %s", id))
	}
	if err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("get project: %w", err))
	}
	return project, nil
}

// ListProjects returns all projects, newest first
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, source_locator, language, created_at
		 FROM projects ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("list projects: %w", err))
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("scan project: %w", err))
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, err)
	}
	return projects, nil
}

// DeleteProject removes a project; files and chunks cascade
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("delete project: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, err)
	}
	if affected == 0 {
		return sifterrors.NotFound(fmt.Sprintf("project not found: %s", id))
	}
	return nil
}

// UpsertFile inserts a file or, when (project_id, path) already exists,
// updates the language in place.
func (s *SQLiteStore) UpsertFile(ctx context.Context, file *File) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, project_id, path, language, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (project_id, path) DO UPDATE SET language = excluded.language`,
		file.ID, file.ProjectID, file.Path, file.Language, file.CreatedAt,
	)
	if err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("upsert file: %w", err))
	}
	return nil
}

// ListFilesByProject returns a project's files ordered by path
func (s *SQLiteStore) ListFilesByProject(ctx context.Context, projectID string) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, path, language, created_at
		 FROM files WHERE project_id = ? ORDER BY path`, projectID)
	if err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("list files: %w", err))
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("scan file: %w", err))
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, err)
	}
	return files, nil
}

// CreateChunk inserts a new chunk with identity fields and code only.
// Enrichment fields are filled by the update operations below.
func (s *SQLiteStore) CreateChunk(ctx context.Context, chunk *Chunk) error {
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (id, project_id, unit_name, file_path, language, unit_kind, code, tested, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.ProjectID,
		nullString(chunk.UnitName),
		chunk.FilePath, chunk.Language, chunk.UnitKind, chunk.Code,
		boolToInt(chunk.Tested), chunk.CreatedAt,
	)
	if err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("create chunk: %w", err))
	}
	return nil
}

// UpdateChunkSummary sets summary, combined, and tokens in one write so
// the three enrichment fields are always present together.
func (s *SQLiteStore) UpdateChunkSummary(ctx context.Context, id, summary, combined string, tokens int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET summary = ?, combined = ?, tokens = ? WHERE id = ?`,
		summary, combined, tokens, id)
	if err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("update chunk summary: %w", err))
	}
	return requireChunkAffected(res, id)
}

// UpdateChunkVectorID links a chunk to its vector-index entry
func (s *SQLiteStore) UpdateChunkVectorID(ctx context.Context, id, vectorID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET vector_id = ? WHERE id = ?`, vectorID, id)
	if err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("update chunk vector id: %w", err))
	}
	return requireChunkAffected(res, id)
}

// GetChunk fetches a chunk by ID
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, unit_name, file_path, language, unit_kind, code,
		        summary, combined, tokens, vector_id, tested, created_at
		 FROM chunks WHERE id = ?`, id)

	chunk, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, sifterrors.New(sifterrors.ErrCodeChunkNotFound,
			fmt.Sprintf("chunk not found: %s", id), nil)
	}
	if err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("get chunk: %w", err))
	}
	return chunk, nil
}

// ListChunksByProject returns a project's chunks in insertion order
func (s *SQLiteStore) ListChunksByProject(ctx context.Context, projectID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, unit_name, file_path, language, unit_kind, code,
		        summary, combined, tokens, vector_id, tested, created_at
		 FROM chunks WHERE project_id = ? ORDER BY created_at, rowid`, projectID)
	if err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("list chunks: %w", err))
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, fmt.Errorf("scan chunk: %w", err))
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, err)
	}
	return chunks, nil
}

func requireChunkAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, err)
	}
	if affected == 0 {
		return sifterrors.New(sifterrors.ErrCodeChunkNotFound,
			fmt.Sprintf("chunk not found: %s", id), nil)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanProject builds a Project field by field from a row
func scanProject(row rowScanner) (*Project, error) {
	var (
		p             Project
		description   sql.NullString
		sourceLocator sql.NullString
		language      sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &description, &sourceLocator, &language, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	p.SourceLocator = sourceLocator.String
	p.Language = language.String
	return &p, nil
}

// scanFile builds a File field by field from a row
func scanFile(row rowScanner) (*File, error) {
	var f File
	err := row.Scan(&f.ID, &f.ProjectID, &f.Path, &f.Language, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// scanChunk builds a Chunk field by field from a row
func scanChunk(row rowScanner) (*Chunk, error) {
	var (
		c        Chunk
		unitName sql.NullString
		summary  sql.NullString
		combined sql.NullString
		tokens   sql.NullInt64
		vectorID sql.NullString
		tested   int
	)
	err := row.Scan(&c.ID, &c.ProjectID, &unitName, &c.FilePath, &c.Language,
		&c.UnitKind, &c.Code, &summary, &combined, &tokens, &vectorID,
		&tested, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.UnitName = unitName.String
	c.Summary = summary.String
	c.Combined = combined.String
	c.Tokens = int(tokens.Int64)
	c.VectorID = vectorID.String
	c.Tested = tested != 0
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
