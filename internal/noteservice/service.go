// Package noteservice answers note queries from the index and the vault.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/export"
	"github.com/starford/marginalia/internal/index"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/parser"
	"github.com/starford/marginalia/internal/storage"
)

// DefaultCacheSize is the number of extracted notes kept in memory.
const DefaultCacheSize = 256

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	ID        string        `json:"id"`
	VaultPath string        `json:"vault_path"`
	Format    parser.Format `json:"format"`
	Checksum  string        `json:"checksum"`
	Note      *models.Note  `json:"note"`
	Backlinks []string      `json:"backlinks"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	DisplayName string    `json:"display_name"`
	Tags        []string  `json:"tags"`
	Words       int       `json:"words"`
	Characters  int       `json:"characters"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// cacheKey ties an extraction to the exact file content it came from.
type cacheKey struct {
	path     string
	checksum string
}

// Service coordinates storage, index, extraction and export.
type Service struct {
	store    storage.Provider
	db       index.NoteIndex
	opts     index.Options
	exporter *export.Builder
	cache    *lru.Cache[cacheKey, *models.Note]
}

// NewService creates a new note service. exporter may be nil, in which case
// Export fails.
func NewService(store storage.Provider, db index.NoteIndex, opts index.Options, exporter *export.Builder, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, *models.Note](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("noteservice: cache: %w", err)
	}
	return &Service{store: store, db: db, opts: opts, exporter: exporter, cache: cache}, nil
}

// GetNote looks the note up by id and extracts it from the current file
// content. Extractions are cached per path and checksum.
func (s *Service) GetNote(_ context.Context, id string) (*NoteDetail, error) {
	row, err := s.db.GetNote(id)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(row.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("noteservice: %s: %w", row.Path, apperr.ErrNotFound)
		}
		return nil, err
	}

	note, cs, err := s.extract(row.Path, data)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(row.ID)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		ID:        row.ID,
		VaultPath: row.Path,
		Format:    parser.FormatFor(row.Path),
		Checksum:  cs,
		Note:      note,
		Backlinks: bl,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (s *Service) extract(rel string, data []byte) (*models.Note, string, error) {
	key := cacheKey{path: rel, checksum: storage.Checksum(data)}
	if note, ok := s.cache.Get(key); ok {
		return note, key.checksum, nil
	}

	abs, err := s.store.Abs(rel)
	if err != nil {
		return nil, "", err
	}
	start := time.Now()
	note, err := parser.FromBytes(abs, data, s.opts.Parser)
	s.opts.Metrics.ObserveExtraction(string(parser.FormatFor(rel)), time.Since(start), err)
	if err != nil {
		return nil, "", err
	}
	s.cache.Add(key, note)
	return note, key.checksum, nil
}

// ListNotes returns one page of indexed notes and the total match count.
func (s *Service) ListNotes(_ context.Context, q index.ListQuery) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(q)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			ID:          r.ID,
			Path:        r.Path,
			DisplayName: r.DisplayName,
			Tags:        nonNilSlice(r.Tags),
			Words:       r.Words,
			Characters:  r.Characters,
			UpdatedAt:   r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph returns all nodes and links for graph visualization.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	return s.db.Graph()
}

// Backlinks returns the paths of all notes linking to id.
func (s *Service) Backlinks(_ context.Context, id string) ([]string, error) {
	return s.db.Backlinks(id)
}

// Export compiles the note to a document regardless of the builder's
// enabled flag and returns the document path.
func (s *Service) Export(ctx context.Context, id string) (string, error) {
	if s.exporter == nil {
		return "", export.ErrNoCommand
	}
	detail, err := s.GetNote(ctx, id)
	if err != nil {
		return "", err
	}
	return s.exporter.Build(ctx, detail.Note, true)
}

// Rebuild re-exports the markup note at the vault-relative path rel when
// automatic export is enabled. It returns "" when nothing was built.
func (s *Service) Rebuild(ctx context.Context, rel string) (string, error) {
	if s.exporter == nil || !s.exporter.Enabled() || parser.FormatFor(rel) != parser.FormatMarkup {
		return "", nil
	}
	data, err := s.store.Read(rel)
	if err != nil {
		return "", err
	}
	note, _, err := s.extract(rel, data)
	if err != nil {
		return "", err
	}
	return s.exporter.Build(ctx, note, false)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
