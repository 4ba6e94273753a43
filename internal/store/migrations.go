package store

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/highbeam/storeshift/internal/catalog"
	"github.com/highbeam/storeshift/internal/mapping"
	"github.com/highbeam/storeshift/internal/schema"
)

// srcSchema is the name the previous working copy is attached under while
// a step runs.
const srcSchema = "src"

// StepMigrator migrates a working copy across one schema hop by building
// the target schema in a new file and moving the data into it.
type StepMigrator struct {
	mappings *mapping.Resolver
}

// NewStepMigrator returns a StepMigrator that prefers explicit mapping
// artifacts from r and infers a mapping for hops without one. r may be nil.
func NewStepMigrator(r *mapping.Resolver) *StepMigrator {
	return &StepMigrator{mappings: r}
}

// MigrateStep reads the store at src (compatible with from) and writes a new
// store at dst (compatible with to). src is never modified. On failure dst
// is removed.
func (m *StepMigrator) MigrateStep(src, dst string, from, to *catalog.Definition) (err error) {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrStoreExists, dst)
	}
	defer func() {
		if err != nil {
			_ = removeStore(dst)
		}
	}()

	mp, explicit, err := m.mappings.Lookup(from.Version, to.Version)
	if err != nil {
		return err
	}

	db, err := openWorkingCopy(dst)
	if err != nil {
		return err
	}
	defer db.Close()

	// ATTACH is per connection; pin one for the whole step.
	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("connect %s: %w", dst, err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, to.DDL); err != nil {
		return fmt.Errorf("apply schema %q: %w", to.Version.Name, err)
	}
	if _, err := conn.ExecContext(ctx, metadataTableDDL); err != nil {
		return fmt.Errorf("create %s: %w", schema.MetadataTable, err)
	}
	if _, err := conn.ExecContext(ctx, `ATTACH DATABASE ? AS `+srcSchema, src); err != nil {
		return fmt.Errorf("attach %s: %w", src, err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin step %s -> %s: %w", from.Version, to.Version, err)
	}

	if explicit {
		if _, err := tx.Exec(mp.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("mapping %s: %w", mp.Name, err)
		}
	} else {
		for _, stmt := range inferredMapping(from.Structure, to.Structure) {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("inferred mapping %s -> %s: %w", from.Version, to.Version, err)
			}
		}
	}

	if err := recordVersion(tx, to.Version); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit step %s -> %s: %w", from.Version, to.Version, err)
	}

	if _, err := conn.ExecContext(ctx, `DETACH DATABASE `+srcSchema); err != nil {
		return fmt.Errorf("detach %s: %w", src, err)
	}
	return nil
}

// inferredMapping copies every column a table has in both structures.
// Tables and columns only in from are dropped; those only in to start empty
// or take their defaults. A new NOT NULL column without a default makes the
// copy fail, which is the signal that the hop needs an explicit mapping.
func inferredMapping(from, to schema.Structure) []string {
	var stmts []string
	for _, t := range to.Tables {
		old, ok := from.Table(t.Name)
		if !ok {
			continue
		}

		var cols []string
		for _, c := range t.Columns {
			if old.HasColumn(c.Name) {
				cols = append(cols, quoteIdent(c.Name))
			}
		}
		if len(cols) == 0 {
			continue
		}

		list := strings.Join(cols, ", ")
		stmts = append(stmts, fmt.Sprintf(
			"INSERT INTO main.%s (%s) SELECT %s FROM %s.%s",
			quoteIdent(t.Name), list, list, srcSchema, quoteIdent(old.Name),
		))
	}
	return stmts
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
