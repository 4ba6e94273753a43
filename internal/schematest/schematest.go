// Package schematest builds schema packages and SQLite stores for tests.
//
// The fixture schema is a single "items" table. Version N adds one column
// per step (field_2 .. field_N) so every version is structurally distinct
// from every other, and the inferred mapping can carry rows forward.
package schematest

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.

	"github.com/highbeam/storeshift/internal/catalog"
)

// VersionName returns the conventional name of version n of base: the base
// alone for n <= 1, "<base> <n>" otherwise.
func VersionName(base string, n int) string {
	if n <= 1 {
		return base
	}
	return fmt.Sprintf("%s %d", base, n)
}

// ModelDDL is the DDL of fixture version n.
func ModelDDL(n int) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE items (\n\tid INTEGER PRIMARY KEY,\n\tname TEXT NOT NULL DEFAULT ''")
	for i := 2; i <= n; i++ {
		fmt.Fprintf(&b, ",\n\tfield_%d TEXT NOT NULL DEFAULT ''", i)
	}
	b.WriteString("\n);\n")
	return b.String()
}

// Definitions parses fixture versions 1..n of base.
func Definitions(t testing.TB, base string, n int) []*catalog.Definition {
	t.Helper()
	defs := make([]*catalog.Definition, 0, n)
	for i := 1; i <= n; i++ {
		d, err := catalog.NewDefinition(catalog.NewVersion(VersionName(base, i)), ModelDDL(i))
		if err != nil {
			t.Fatalf("definition %d: %v", i, err)
		}
		defs = append(defs, d)
	}
	return defs
}

// Catalog returns an in-memory catalog of fixture versions 1..n.
func Catalog(t testing.TB, base string, n int) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(base, "", Definitions(t, base, n), catalog.NewVersion(VersionName(base, n)))
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return cat
}

// WritePackage writes fixture versions 1..n of base as a package under
// searchLocation and returns the package directory.
func WritePackage(t testing.TB, searchLocation, base string, n int) string {
	t.Helper()
	dir := catalog.PackageDir(base, searchLocation)
	if err := os.MkdirAll(filepath.Join(dir, catalog.MappingsDir), 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= n; i++ {
		WriteFile(t, filepath.Join(dir, VersionName(base, i)+catalog.ArtifactExt), ModelDDL(i))
	}
	WriteFile(t, filepath.Join(dir, catalog.CurrentFile), VersionName(base, n)+"\n")
	return dir
}

// WriteFile writes content to path or fails the test.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// CreateStore creates a SQLite store at path with ddl applied and rows
// inserted into items, one per name. An empty ddl only inserts the rows.
func CreateStore(t testing.TB, path, ddl string, names ...string) {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	if ddl != "" {
		if _, err := db.Exec(ddl); err != nil {
			t.Fatalf("apply ddl: %v", err)
		}
	}
	for _, n := range names {
		if _, err := db.Exec(`INSERT INTO items (name) VALUES (?)`, n); err != nil {
			t.Fatalf("insert %q: %v", n, err)
		}
	}
}

// UseWAL switches the store at path to WAL journal mode, as long-lived
// application stores usually are. The mode persists in the file; the
// sidecars are gone once the connection closes.
func UseWAL(t testing.TB, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow(`PRAGMA journal_mode = wal`).Scan(&mode); err != nil {
		t.Fatalf("set journal mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal mode is %q, want wal", mode)
	}
}

// ItemNames returns the names stored in items, ordered by id.
func ItemNames(t testing.TB, path string) []string {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+path+"?mode=rw")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT name FROM items ORDER BY id`)
	if err != nil {
		t.Fatalf("query items: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("scan: %v", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	return names
}

// DirEntries returns the sorted names of the entries in dir.
func DirEntries(t testing.TB, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}
