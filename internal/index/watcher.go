package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/marginalia/internal/noteid"
	"github.com/starford/marginalia/internal/parser"
	"github.com/starford/marginalia/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

const (
	// settleDelay coalesces the burst of writes an editor makes on save.
	settleDelay = 50 * time.Millisecond
	// reconcileDelay debounces rename reconciliation.
	reconcileDelay = 200 * time.Millisecond
)

// EventCallback is called after a watcher-driven index change. path is
// relative to the vault root and id is the note's canonical id.
type EventCallback func(kind, path, id string)

// debounce is a resettable one-shot timer usable in a select loop.
type debounce struct {
	delay time.Duration
	timer *time.Timer
	C     <-chan time.Time
}

func (d *debounce) schedule() {
	if d.timer == nil {
		d.timer = time.NewTimer(d.delay)
		d.C = d.timer.C
		return
	}
	d.timer.Reset(d.delay)
}

func (d *debounce) stop() {
	if d.timer != nil {
		d.timer.Stop()
	}
}

type watcher struct {
	fsw    *fsnotify.Watcher
	db     *DB
	store  storage.Provider
	root   string
	opts   Options
	logger *slog.Logger
	cb     EventCallback

	// pending holds changed notes waiting for writes to settle.
	pending   map[string]struct{}
	settle    debounce
	reconcile debounce
}

// Watch starts an fsnotify watcher on the vault root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each index mutation that changed something.
//
// Writes are coalesced per file and a save that leaves the content
// unchanged produces no event. New directories created at runtime are added
// to the watch list unless an ignore pattern excludes them. Rename events
// trigger a reconciliation pass that removes stale index entries whose
// files no longer exist on disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, opts Options, logger *slog.Logger, cb EventCallback) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	w := &watcher{
		fsw:       fsw,
		db:        db,
		store:     store,
		root:      vaultRoot,
		opts:      opts,
		logger:    logger,
		cb:        cb,
		pending:   make(map[string]struct{}),
		settle:    debounce{delay: settleDelay},
		reconcile: debounce{delay: reconcileDelay},
	}
	if err := w.addDirs(vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	for {
		select {
		case <-ctx.Done():
			w.settle.stop()
			w.reconcile.stop()
			logger.Info("watcher: stopped")
			return nil

		case <-w.settle.C:
			w.flush()

		case <-w.reconcile.C:
			w.reconcileAll()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *watcher) notify(kind, rel string) {
	if kind == EventDeleted || kind == EventCreated {
		recordCount(w.db, w.opts.Metrics, w.logger)
	}
	if w.cb != nil {
		w.cb(kind, rel, idFor(rel))
	}
}

func (w *watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			if w.store.SkipDir(rel) {
				return
			}
			if addErr := w.addDirs(ev.Name); addErr != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", rel),
					slog.String("error", addErr.Error()))
			} else {
				w.logger.Debug("watcher: watching new dir", slog.String("path", rel))
			}
			// Notes may land in the directory before it is watched.
			w.indexDir(ev.Name)
			return
		}
	}

	if !w.store.Handles(rel) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.pending[rel] = struct{}{}
		w.settle.schedule()

	case ev.Op&fsnotify.Remove != 0:
		delete(w.pending, rel)
		w.remove(rel)

	case ev.Op&fsnotify.Rename != 0:
		// fsnotify fires Rename on the OLD path only. The new path arrives
		// as a separate Create event when it stays within a watched dir, so
		// the old entry goes now and a reconciliation pass catches the rest.
		delete(w.pending, rel)
		w.remove(rel)
		w.reconcile.schedule()
	}
}

// flush indexes every pending note in path order.
func (w *watcher) flush() {
	paths := make([]string, 0, len(w.pending))
	for rel := range w.pending {
		paths = append(paths, rel)
	}
	clear(w.pending)
	slices.Sort(paths)
	for _, rel := range paths {
		w.index(rel)
	}
}

func (w *watcher) index(rel string) {
	data, err := w.store.Read(rel)
	if err != nil {
		// Saved and removed again before settling.
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
		return
	}
	prev, _ := w.db.GetChecksum(rel)
	if prev == storage.Checksum(data) {
		return
	}
	if err := indexFile(w.db, w.store, rel, data, w.opts); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	kind := EventUpdated
	if prev == "" {
		kind = EventCreated
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	w.notify(kind, rel)
}

func (w *watcher) remove(rel string) {
	if prev, _ := w.db.GetChecksum(rel); prev == "" {
		return
	}
	if err := w.db.DeleteNote(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	w.notify(EventDeleted, rel)
}

// reconcileAll does a lightweight sync using batch lookups: it removes
// index entries without a file on disk and indexes files whose checksum
// differs from the index.
func (w *watcher) reconcileAll() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			w.remove(p)
		}
	}
	for p, cs := range disk {
		if checksums[p] != cs {
			w.index(p)
		}
	}
}

// indexDir indexes the notes already present in a newly created directory.
func (w *watcher) indexDir(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if w.store.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.store.Handles(rel) {
			w.index(rel)
		}
		return nil
	})
}

// addDirs adds root and all its subdirectories that are not ignored to the
// watcher.
func (w *watcher) addDirs(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(w.root, path); relErr == nil && w.store.SkipDir(rel) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// idFor returns the canonical id of the note at rel, or "" when the path
// has no usable name.
func idFor(rel string) string {
	name, err := parser.NoteName(rel)
	if err != nil {
		return ""
	}
	return noteid.Canonicalize(name)
}
