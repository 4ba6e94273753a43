// Package schema describes the structure of a SQLite store: its tables,
// columns and indexes. Two structures with the same fingerprint can read
// each other's data, which is the compatibility test the migration engine
// relies on.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// MetadataTable is the bookkeeping table every migrated store carries. It is
// excluded from structural comparison.
const MetadataTable = "storeshift_metadata"

// VersionKey is the MetadataTable key holding the version name a store was
// last written at.
const VersionKey = "schema_version"

// Column is a single column of a table.
type Column struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	NotNull bool   `json:"not_null"`
	// PrimaryKey is the 1-based position within the primary key, 0 if the
	// column is not part of it.
	PrimaryKey int    `json:"primary_key"`
	Default    string `json:"default,omitempty"`
}

// Table is a user table with its columns and index names, both sorted by name.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Indexes []string `json:"indexes,omitempty"`
}

// Structure is the structural description of a store or of a schema artifact.
type Structure struct {
	Tables []Table `json:"tables"`
}

// Metadata is what can be learned from an existing store without knowing
// which schema version produced it.
type Metadata struct {
	Structure   Structure `json:"structure"`
	VersionName string    `json:"version_name,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
}

// Table returns the named table.
func (s Structure) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// ColumnNames returns the table's column names in sorted order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the table has a column with the given name.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Canonical renders the structure as deterministic text. Column order and
// identifier case are normalised away so the result only changes when the
// shape of the data changes.
func (s Structure) Canonical() string {
	tables := append([]Table(nil), s.Tables...)
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	var b strings.Builder
	for _, t := range tables {
		fmt.Fprintf(&b, "table %s\n", strings.ToLower(t.Name))

		cols := append([]Column(nil), t.Columns...)
		sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
		for _, c := range cols {
			fmt.Fprintf(&b, "  column %s %s notnull=%t pk=%d default=%s\n",
				strings.ToLower(c.Name), strings.ToUpper(c.Type), c.NotNull, c.PrimaryKey, c.Default)
		}

		idx := append([]string(nil), t.Indexes...)
		sort.Strings(idx)
		for _, name := range idx {
			fmt.Fprintf(&b, "  index %s\n", strings.ToLower(name))
		}
	}
	return b.String()
}

// Fingerprint is the hex SHA-256 of Canonical.
func (s Structure) Fingerprint() string {
	sum := sha256.Sum256([]byte(s.Canonical()))
	return hex.EncodeToString(sum[:])
}

// Equal reports whether two structures are interchangeable.
func (s Structure) Equal(other Structure) bool {
	return s.Canonical() == other.Canonical()
}

// Compatible is the default compatibility predicate: a store is readable by
// a structure when their fingerprints match. The recorded version name is
// informational and never consulted.
func Compatible(s Structure, md Metadata) bool {
	return s.Equal(md.Structure)
}
