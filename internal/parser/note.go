package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
)

// FromPath reads the note at path and extracts its metadata. The format is
// chosen by extension, falling back to Markdown.
func FromPath(path string, opts Options) (*models.Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperr.ErrFileUnreadable, path, err)
	}
	return FromBytes(path, data, opts)
}

// FromBytes extracts metadata from the content of the note at path without
// reading the file. path still determines format, name and resolved path.
func FromBytes(path string, data []byte, opts Options) (*models.Note, error) {
	name, err := NoteName(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s: invalid UTF-8", apperr.ErrFileUnreadable, path)
	}

	extractor, fence := ExtractorFor(FormatFor(path), opts)
	raw, body := SplitFrontmatter(string(data), fence)

	md, err := ParseMetadata(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	ex, err := extractor.Extract(body)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	displayName := name
	if md.Title != nil {
		displayName = *md.Title
	}

	return &models.Note{
		DisplayName: displayName,
		Name:        name,
		Tags:        append(nonNil(ex.Tags), md.Tags...),
		Links:       nonNil(ex.Links),
		Words:       ex.Words,
		Characters:  ex.Characters,
		Path:        resolvePath(path),
	}, nil
}

// NoteName returns the name of the note at path: its file name without the
// final extension.
func NoteName(path string) (string, error) {
	name, ok := fileStem(filepath.ToSlash(path))
	if !ok {
		return "", fmt.Errorf("%w: %q", apperr.ErrNoteNameUnreadable, path)
	}
	return name, nil
}

// resolvePath returns the absolute, symlink free form of path, or path itself
// when it cannot be resolved (e.g. it does not exist yet).
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return path
	}
	return resolved
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
