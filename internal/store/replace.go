package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Replacer swaps a finished working copy into the canonical store location
// with rename(2), which is atomic within one file system: readers of the
// destination see either the old store or the new one, never a mix.
type Replacer struct{}

// NewReplacer returns the SQLite replacer.
func NewReplacer() *Replacer {
	return &Replacer{}
}

// ReplaceStore moves src over dst. On error dst is unchanged.
func (r *Replacer) ReplaceStore(dst, src string) error {
	if err := syncFile(src); err != nil {
		return fmt.Errorf("sync %s: %w", src, err)
	}

	// A WAL left next to dst would be replayed onto the new file, so fold it
	// into the old database first. This changes no content.
	if _, err := os.Stat(dst + "-wal"); err == nil {
		if err := checkpoint(dst); err != nil {
			return fmt.Errorf("checkpoint %s: %w", dst, err)
		}
	}

	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s: %w", src, err)
	}

	// The new store is in place; what follows is housekeeping.
	_ = syncDir(filepath.Dir(dst))
	for _, p := range append(sidecarPaths(dst), sidecarPaths(src)...) {
		_ = os.Remove(p)
	}
	return nil
}

// checkpoint copies all WAL frames into the database file and truncates the
// WAL. It fails if another connection keeps the checkpoint from completing.
func checkpoint(path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return err
	}
	defer db.Close()

	var busy, logFrames, checkpointed int
	if err := db.QueryRow(`PRAGMA wal_checkpoint(TRUNCATE)`).Scan(&busy, &logFrames, &checkpointed); err != nil {
		return err
	}
	if busy != 0 {
		return errors.New("database is busy")
	}
	return nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
