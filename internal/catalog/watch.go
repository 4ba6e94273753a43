package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchWindow is the quiet period Watch waits for before reloading.
const DefaultWatchWindow = 200 * time.Millisecond

// Watch loads packageName and calls onLoad with the result, then reloads and
// calls onLoad again each time an artifact in the package changes. It blocks
// until ctx is cancelled. onLoad is always called from the Watch goroutine.
//
// Every reload yields a new Catalog; values already handed out are never
// mutated. Each reload is logged at debug level with the change that
// triggered it; a nil logger means slog.Default().
func Watch(ctx context.Context, packageName, searchLocation string, window time.Duration, logger *slog.Logger, onLoad func(*Catalog, error)) error {
	dir := PackageDir(packageName, searchLocation)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrPackageNotFound, dir)
	}
	if window <= 0 {
		window = DefaultWatchWindow
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	mappings := filepath.Join(dir, MappingsDir)
	if info, err := os.Stat(mappings); err == nil && info.IsDir() {
		_ = fsw.Add(mappings)
	}

	onLoad(Load(packageName, searchLocation))

	reloads := make(chan Change, 1)
	deb := newDebouncer(window, func(c Change) {
		select {
		case reloads <- c:
		default: // a reload is already queued
		}
	})
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !isArtifact(ev.Name) {
				continue
			}
			op := mapChangeOp(ev.Op)
			if op == "" {
				continue
			}
			deb.feed(dir, Change{Path: ev.Name, Op: op, Timestamp: time.Now()})

		case c := <-reloads:
			logger.Debug("reloading schema package",
				"package", packageName,
				"path", c.Path,
				"op", c.Op,
				"changed_at", c.Timestamp)
			onLoad(Load(packageName, searchLocation))

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			onLoad(nil, fmt.Errorf("watch %s: %w", dir, err))
		}
	}
}

// isArtifact reports whether a change to path can alter the catalog.
func isArtifact(path string) bool {
	base := filepath.Base(path)
	return base == CurrentFile || filepath.Ext(base) == ArtifactExt
}

func mapChangeOp(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Remove):
		return "delete"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Write):
		return "modify"
	default:
		return "" // chmod only
	}
}
