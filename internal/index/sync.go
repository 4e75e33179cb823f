package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/marginalia/internal/metrics"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/parser"
	"github.com/starford/marginalia/internal/storage"
)

// Options configures how notes are extracted while indexing.
type Options struct {
	Parser parser.Options
	// Workers bounds concurrent extraction during Sync; values below 1 mean 1.
	Workers int
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// SyncStats summarizes one Sync pass.
type SyncStats struct {
	Indexed int
	Removed int
	Failed  int
}

// Sync walks the vault and brings the index up to date:
//   - new/changed files are extracted concurrently and upserted
//   - files removed from disk are deleted from the index
//
// A note that fails to extract is logged and skipped; its previous row, if
// any, is kept.
func Sync(ctx context.Context, db *DB, store storage.Provider, opts Options, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats

	metas, err := store.List("")
	if err != nil {
		return stats, err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	disk := make(map[string]struct{}, len(metas))
	var changed []models.NoteMetadata
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if checksums[m.Path] != m.Checksum {
			changed = append(changed, m)
		}
	}

	type result struct {
		row   NoteRow
		body  string
		links []string
		err   error
	}
	results := make([]result, len(changed))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for i, m := range changed {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := store.Read(m.Path)
			if err != nil {
				results[i].err = err
				return nil
			}
			row, body, links, err := extract(store, m.Path, data, opts)
			if err == nil {
				row.UpdatedAt = m.UpdatedAt
			}
			results[i] = result{row: row, body: body, links: links, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, fmt.Errorf("sync: %w", err)
	}

	// SQLite takes one writer at a time, so rows are written here.
	for i, r := range results {
		path := changed[i].Path
		if r.err != nil {
			stats.Failed++
			logger.Warn("sync: extract failed", slog.String("path", path), slog.String("error", r.err.Error()))
			continue
		}
		if err := db.UpsertNote(r.row, r.body, r.links); err != nil {
			stats.Failed++
			logger.Warn("sync: index failed", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		stats.Indexed++
		logger.Debug("sync: indexed", slog.String("path", path))
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteNote(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	recordCount(db, opts.Metrics, logger)
	logger.Info("sync: done",
		slog.Int("indexed", stats.Indexed),
		slog.Int("removed", stats.Removed),
		slog.Int("failed", stats.Failed))
	return stats, nil
}

// extract runs the note pipeline over data and builds its index row. The
// note is parsed under its absolute path so Note.Path matches what FromPath
// would report.
func extract(store storage.Provider, rel string, data []byte, opts Options) (NoteRow, string, []string, error) {
	abs, err := store.Abs(rel)
	if err != nil {
		return NoteRow{}, "", nil, err
	}

	format := parser.FormatFor(rel)
	start := time.Now()
	note, err := parser.FromBytes(abs, data, opts.Parser)
	opts.Metrics.ObserveExtraction(string(format), time.Since(start), err)
	if err != nil {
		return NoteRow{}, "", nil, err
	}

	_, body := parser.SplitFrontmatter(string(data), parser.FenceFor(format))
	row := NoteRow{
		Path:        rel,
		Name:        note.Name,
		DisplayName: note.DisplayName,
		Tags:        note.Tags,
		Words:       note.Words,
		Characters:  note.Characters,
		Checksum:    storage.Checksum(data),
		UpdatedAt:   time.Now(),
	}
	return row, body, note.Links, nil
}

// indexFile extracts data and upserts it into the DB.
func indexFile(db *DB, store storage.Provider, rel string, data []byte, opts Options) error {
	row, body, links, err := extract(store, rel, data, opts)
	if err != nil {
		return err
	}
	return db.UpsertNote(row, body, links)
}

func recordCount(db *DB, m *metrics.Metrics, logger *slog.Logger) {
	if m == nil {
		return
	}
	n, err := db.Count()
	if err != nil {
		logger.Warn("index: count failed", slog.String("error", err.Error()))
		return
	}
	m.SetIndexed(n)
}
