// Package intake materializes project sources into a per-project
// workspace directory and registers the discovered code files with the
// metadata store. It is also the file-read collaborator consumed by the
// enrichment pipeline.
package intake

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/codesift/codesift/internal/chunk"
	sifterrors "github.com/codesift/codesift/internal/errors"
	"github.com/codesift/codesift/internal/store"
)

// registerConcurrency bounds parallel file registration
const registerConcurrency = 8

var skipDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	"__pycache__":  {},
	"node_modules": {},
	"venv":         {},
	".venv":        {},
	"env":          {},
	".env":         {},
	"vendor":       {},
	"build":        {},
	"dist":         {},
}

// FileEntry is one discovered code file
type FileEntry struct {
	Path     string // relative to the project workspace
	Language string
}

// Intake manages project workspaces under a root directory
type Intake struct {
	workspaceDir string
	store        store.MetadataStore
	logger       *slog.Logger
}

// New creates an Intake rooted at workspaceDir
func New(workspaceDir string, metaStore store.MetadataStore, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{
		workspaceDir: workspaceDir,
		store:        metaStore,
		logger:       logger,
	}
}

// projectDir returns the workspace directory for a project
func (in *Intake) projectDir(projectID string) string {
	return filepath.Join(in.workspaceDir, projectID)
}

// IngestDirectory copies a source directory into the project workspace
// and registers its code files. Returns the number of files registered.
func (in *Intake) IngestDirectory(ctx context.Context, projectID, sourceDir string) (int, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return 0, sifterrors.New(sifterrors.ErrCodeFileNotFound,
			fmt.Sprintf("source directory not found: %s", sourceDir), err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("source is not a directory: %s", sourceDir)
	}

	dest := in.projectDir(projectID)
	if err := copyTree(sourceDir, dest); err != nil {
		in.cleanup(projectID)
		return 0, fmt.Errorf("copy source tree: %w", err)
	}

	return in.registerFiles(ctx, projectID)
}

// IngestZip extracts a zip archive into the project workspace and
// registers its code files.
func (in *Intake) IngestZip(ctx context.Context, projectID, zipPath string) (int, error) {
	dest := in.projectDir(projectID)
	if err := extractZip(zipPath, dest); err != nil {
		in.cleanup(projectID)
		return 0, fmt.Errorf("extract zip: %w", err)
	}
	return in.registerFiles(ctx, projectID)
}

// registerFiles discovers code files and upserts File rows. Discovery
// is ordered; registration fans out over a bounded worker group.
func (in *Intake) registerFiles(ctx context.Context, projectID string) (int, error) {
	entries, err := in.discover(projectID)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(registerConcurrency)
	for _, entry := range entries {
		g.Go(func() error {
			return in.store.UpsertFile(gctx, &store.File{
				ProjectID: projectID,
				Path:      entry.Path,
				Language:  entry.Language,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("register files: %w", err)
	}

	in.logger.Info("project files registered",
		slog.String("project_id", projectID),
		slog.Int("files", len(entries)))
	return len(entries), nil
}

// discover walks the project workspace for code files, skipping VCS
// and dependency directories and honoring a root .gitignore.
func (in *Intake) discover(projectID string) ([]FileEntry, error) {
	root := in.projectDir(projectID)
	gi := loadGitignore(root)

	var results []FileEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if !chunk.IsCodeFile(rel) {
			return nil
		}

		results = append(results, FileEntry{
			Path:     filepath.ToSlash(rel),
			Language: chunk.DetectLanguage(rel),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})
	return results, nil
}

// ReadFile returns the content of one file in a project's workspace
func (in *Intake) ReadFile(projectID, relPath string) (string, error) {
	full := filepath.Join(in.projectDir(projectID), filepath.FromSlash(relPath))
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", sifterrors.New(sifterrors.ErrCodeFileNotFound,
				fmt.Sprintf("file not found: %s", relPath), err)
		}
		return "", fmt.Errorf("read %s: %w", relPath, err)
	}
	return string(data), nil
}

// ListFiles returns a project's registered files, ordered by path
func (in *Intake) ListFiles(ctx context.Context, projectID string) ([]FileEntry, error) {
	files, err := in.store.ListFilesByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	entries := make([]FileEntry, len(files))
	for i, f := range files {
		entries[i] = FileEntry{Path: f.Path, Language: f.Language}
	}
	return entries, nil
}

// RemoveProject deletes a project's workspace directory
func (in *Intake) RemoveProject(projectID string) error {
	return os.RemoveAll(in.projectDir(projectID))
}

func (in *Intake) cleanup(projectID string) {
	if err := os.RemoveAll(in.projectDir(projectID)); err != nil {
		in.logger.Warn("workspace cleanup failed",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()))
	}
}

// copyTree copies a directory tree, skipping symlinks
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// extractZip extracts an archive into dest, rejecting entries that
// would escape it.
func extractZip(zipPath, dest string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	for _, f := range r.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("zip entry escapes destination: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(target)
		if err != nil {
			rc.Close()
			return err
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			rc.Close()
			return err
		}
		if err := out.Close(); err != nil {
			rc.Close()
			return err
		}
		rc.Close()
	}
	return nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
