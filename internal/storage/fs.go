package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/marginalia/internal/models"
)

// Defaults used when no option overrides them.
var (
	DefaultExtensions = []string{"md", "typ"}
	DefaultIgnore     = []string{".git/**", ".pdf/**"}
)

// FS implements Provider backed by the local file system.
type FS struct {
	root       string // absolute path to vault directory
	extensions []string
	ignore     []string
}

// Option configures an FS.
type Option func(*FS)

// WithExtensions sets the note file extensions (without leading dot).
func WithExtensions(exts ...string) Option {
	return func(f *FS) {
		f.extensions = f.extensions[:0]
		for _, e := range exts {
			f.extensions = append(f.extensions, strings.TrimPrefix(e, "."))
		}
	}
}

// WithIgnore sets doublestar patterns of vault-relative, slash separated
// paths that are never listed.
func WithIgnore(patterns ...string) Option {
	return func(f *FS) {
		f.ignore = append([]string(nil), patterns...)
	}
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string, opts ...Option) (*FS, error) {
	f := &FS{
		extensions: slices.Clone(DefaultExtensions),
		ignore:     slices.Clone(DefaultIgnore),
	}
	for _, opt := range opts {
		opt(f)
	}
	for _, p := range f.ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("storage: invalid ignore pattern %q", p)
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	f.root = abs
	return f, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes vault root: %s", rel)
	}
	return abs, nil
}

// Abs implements Provider.
func (f *FS) Abs(path string) (string, error) {
	return f.safePath(path)
}

// Handles implements Provider.
func (f *FS) Handles(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if !slices.Contains(f.extensions, ext) {
		return false
	}
	return !f.ignored(filepath.ToSlash(filepath.Clean(path)))
}

// SkipDir implements Provider.
func (f *FS) SkipDir(path string) bool {
	slashPath := filepath.ToSlash(filepath.Clean(path))
	return slashPath != "." && f.ignored(slashPath)
}

func (f *FS) ignored(slashPath string) bool {
	for _, p := range f.ignore {
		if ok, _ := doublestar.Match(p, slashPath); ok {
			return true
		}
	}
	return false
}

// List walks dir (relative to root) and returns metadata for every note
// file. Directories matched by an ignore pattern are not entered.
func (f *FS) List(dir string) ([]models.NoteMetadata, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.NoteMetadata
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, _ := filepath.Rel(f.root, p)
		if d.IsDir() {
			if f.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !f.Handles(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out = append(out, models.NoteMetadata{
			Path:      rel,
			Checksum:  Checksum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}
