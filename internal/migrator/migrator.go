// Package migrator drives a store from whatever catalog version it was
// written with to a target version, one adjacent hop at a time, on temporary
// copies. The original store is only touched by the final atomic replace, so
// every failure before it leaves the store exactly as it was.
package migrator

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/highbeam/storeshift/internal/catalog"
	"github.com/highbeam/storeshift/internal/mapping"
	"github.com/highbeam/storeshift/internal/schema"
	"github.com/highbeam/storeshift/internal/store"
)

// StoreKind selects the Driver used for a store.
type StoreKind string

// SQLite is the only kind registered by default.
const SQLite StoreKind = "sqlite"

// ParseStoreKind parses a kind name as written in config files and flags.
func ParseStoreKind(s string) (StoreKind, error) {
	switch k := StoreKind(strings.ToLower(strings.TrimSpace(s))); k {
	case SQLite:
		return k, nil
	case "":
		return SQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedStoreKind, s)
	}
}

var (
	// ErrUnrecognizedSourceSchema means no catalog version can read the
	// store, so there is nothing to migrate from.
	ErrUnrecognizedSourceSchema = errors.New("store schema is not in the catalog")
	ErrUnsupportedStoreKind     = errors.New("unsupported store kind")
	ErrNoTarget                 = errors.New("no target definition")
	ErrStepFailed               = errors.New("migration step failed")
	ErrCommitFailed             = errors.New("commit failed")
)

// Driver is the host persistence layer for one store kind.
type Driver interface {
	// Metadata describes the store at path.
	Metadata(path string) (schema.Metadata, error)
	// Copy writes a consistent copy of src to dst, which must not exist.
	Copy(src, dst string) error
	// Remove deletes the store at path with any files it keeps beside it.
	Remove(path string) error
}

// StepMigrator migrates one adjacent hop. It reads src, which is compatible
// with from, and writes a new store at dst compatible with to. It must not
// modify src.
type StepMigrator interface {
	MigrateStep(src, dst string, from, to *catalog.Definition) error
}

// StoreReplacer puts src in place of dst all-or-nothing: after it returns,
// dst holds either the complete new content or, on error, the old content.
type StoreReplacer interface {
	ReplaceStore(dst, src string) error
}

// Compatibility reports whether a store described by md can be read with def.
type Compatibility func(def *catalog.Definition, md schema.Metadata) bool

// Migrator runs migrations against one catalog. It holds no per-call state;
// concurrent calls for different stores are safe.
type Migrator struct {
	catalog    *catalog.Catalog
	drivers    map[StoreKind]Driver
	steps      StepMigrator
	replacer   StoreReplacer
	compatible Compatibility
	logger     *slog.Logger
	newID      func() string
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithDriver registers d for kind, replacing any previous driver.
func WithDriver(kind StoreKind, d Driver) Option {
	return func(m *Migrator) { m.drivers[kind] = d }
}

// WithStepMigrator replaces the SQLite step migrator.
func WithStepMigrator(s StepMigrator) Option {
	return func(m *Migrator) { m.steps = s }
}

// WithReplacer replaces the rename-based replacer.
func WithReplacer(r StoreReplacer) Option {
	return func(m *Migrator) { m.replacer = r }
}

// WithCompatibility replaces the fingerprint comparison.
func WithCompatibility(c Compatibility) Option {
	return func(m *Migrator) { m.compatible = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) { m.logger = l }
}

// WithIDGenerator sets how temporary file namespaces are generated.
func WithIDGenerator(f func() string) Option {
	return func(m *Migrator) { m.newID = f }
}

// New returns a Migrator for cat. Without options it migrates SQLite stores
// using the package's mapping artifacts, inferring a mapping where none
// exists.
func New(cat *catalog.Catalog, opts ...Option) *Migrator {
	m := &Migrator{
		catalog:    cat,
		drivers:    map[StoreKind]Driver{SQLite: store.NewDriver()},
		steps:      store.NewStepMigrator(mapping.NewResolver(cat)),
		replacer:   store.NewReplacer(),
		compatible: func(def *catalog.Definition, md schema.Metadata) bool { return def.CompatibleWith(md) },
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Catalog is the catalog the migrator plans against.
func (m *Migrator) Catalog() *catalog.Catalog { return m.catalog }

func (m *Migrator) driver(kind StoreKind) (Driver, error) {
	d, ok := m.drivers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStoreKind, kind)
	}
	return d, nil
}

// resolve returns the catalog definition that can read md, newest first.
func (m *Migrator) resolve(md schema.Metadata) (*catalog.Definition, bool) {
	defs := m.catalog.Definitions()
	for i := len(defs) - 1; i >= 0; i-- {
		if m.compatible(defs[i], md) {
			return defs[i], true
		}
	}
	return nil, false
}
