package migrator

import (
	"errors"
	"fmt"
	"os"

	"github.com/highbeam/storeshift/internal/catalog"
	"github.com/highbeam/storeshift/internal/planner"
	"github.com/highbeam/storeshift/internal/schema"
)

// Inspection describes a store relative to the catalog without changing it.
type Inspection struct {
	Path     string
	Exists   bool
	Metadata schema.Metadata
	// Current is the catalog version that can read the store; nil when the
	// store is missing or matches no catalog version.
	Current *catalog.Definition
	// Compatible reports whether the store already matches the target.
	Compatible bool
	// Steps is what Migrate would run to reach the target.
	Steps []planner.Step
}

// Inspect resolves the store's version and plans the migration to target
// without running it. It lets startup code decide how far a store is behind
// before committing to a migration.
func (m *Migrator) Inspect(storePath string, kind StoreKind, target *catalog.Definition) (*Inspection, error) {
	if target == nil {
		return nil, ErrNoTarget
	}
	d, err := m.driver(kind)
	if err != nil {
		return nil, err
	}

	in := &Inspection{Path: storePath}
	if _, err := os.Stat(storePath); errors.Is(err, os.ErrNotExist) {
		return in, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat store: %w", err)
	}
	in.Exists = true

	md, err := d.Metadata(storePath)
	if err != nil {
		return nil, fmt.Errorf("read store metadata: %w", err)
	}
	in.Metadata = md
	in.Compatible = m.compatible(target, md)

	current, ok := m.resolve(md)
	if ok {
		in.Current = current
	}
	// A store that already matches target needs no catalog version, the
	// same as in Migrate.
	if in.Compatible {
		return in, nil
	}
	if !ok {
		return in, fmt.Errorf("%w: %s", ErrUnrecognizedSourceSchema, storePath)
	}
	in.Steps = planner.Steps(m.catalog, current, target)
	return in, nil
}
