// Package store is the SQLite side of the migration engine: it reads the
// metadata of a store file, makes working copies, migrates a copy across
// one schema hop and atomically swaps the result into place.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.

	"github.com/highbeam/storeshift/internal/catalog"
	"github.com/highbeam/storeshift/internal/schema"
)

var (
	// ErrNotAStore is returned for files SQLite cannot read as a database.
	ErrNotAStore = errors.New("not a sqlite store")
	// ErrStoreExists is returned when a fresh store would overwrite a file.
	ErrStoreExists = errors.New("store already exists")
)

// sidecars are the files SQLite may keep next to a database.
var sidecars = []string{"-journal", "-wal", "-shm"}

// openExisting opens a store that must already exist. Callers only read
// through it. Not mode=ro: only a read-write connection removes the -wal and
// -shm files of a WAL store when it closes.
func openExisting(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=rw&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// openWorkingCopy opens (or creates) a temporary store. Working copies use a
// rollback journal so a finished file is self-contained and can be renamed
// without a -wal file trailing it.
func openWorkingCopy(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(delete)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Driver reads and copies SQLite stores.
type Driver struct{}

// NewDriver returns the SQLite driver.
func NewDriver() *Driver {
	return &Driver{}
}

// Metadata introspects the store at path. The recorded version name is
// informational; compatibility is decided on the structure alone.
func (d *Driver) Metadata(path string) (schema.Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return schema.Metadata{}, err
	}

	db, err := openExisting(path)
	if err != nil {
		return schema.Metadata{}, err
	}
	defer db.Close()

	// sql.Open is lazy; force a read so a non-database file fails here.
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master`).Scan(&n); err != nil {
		return schema.Metadata{}, fmt.Errorf("%w: %s: %v", ErrNotAStore, path, err)
	}

	s, err := schema.Introspect(db)
	if err != nil {
		return schema.Metadata{}, fmt.Errorf("introspect %s: %w", path, err)
	}
	version, err := schema.RecordedVersion(db)
	if err != nil {
		return schema.Metadata{}, fmt.Errorf("read recorded version: %w", err)
	}

	return schema.Metadata{Structure: s, VersionName: version, SizeBytes: info.Size()}, nil
}

// Copy writes a consistent snapshot of src to dst, which must not exist.
// VACUUM INTO reads through any pending WAL content and leaves src as is.
func (d *Driver) Copy(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrStoreExists, dst)
	}

	db, err := openExisting(src)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(`VACUUM INTO ?`, dst); err != nil {
		_ = removeStore(dst)
		return fmt.Errorf("copy %s: %w", src, err)
	}

	// The snapshot inherits the source's journal mode; working copies must
	// not be in WAL mode.
	if err := ensureRollbackJournal(dst); err != nil {
		_ = removeStore(dst)
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}

func ensureRollbackJournal(path string) error {
	db, err := openWorkingCopy(path)
	if err != nil {
		return err
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		return fmt.Errorf("check journal mode: %w", err)
	}
	if mode != "delete" {
		return fmt.Errorf("expected delete journal mode, got %q", mode)
	}
	return nil
}

// Remove deletes the store at path together with its sidecar files. A
// missing file is not an error.
func (d *Driver) Remove(path string) error {
	return removeStore(path)
}

func removeStore(path string) error {
	var errs []error
	for _, p := range append([]string{path}, sidecarPaths(path)...) {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sidecarPaths(path string) []string {
	out := make([]string, len(sidecars))
	for i, s := range sidecars {
		out[i] = path + s
	}
	return out
}

// Create makes a fresh store at path using def. It is what callers do after
// Migrate skipped a missing store.
func Create(path string, def *catalog.Definition) (err error) {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrStoreExists, path)
	}

	db, err := openWorkingCopy(path)
	if err != nil {
		return err
	}
	defer func() {
		cerr := db.Close()
		if err == nil {
			err = cerr
		}
		if err != nil {
			_ = removeStore(path)
		}
	}()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	if _, err := tx.Exec(def.DDL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply schema %q: %w", def.Version.Name, err)
	}
	if _, err := tx.Exec(metadataTableDDL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("create %s: %w", schema.MetadataTable, err)
	}
	if err := recordVersion(tx, def.Version); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	return nil
}
