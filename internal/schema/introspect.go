package schema

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

// Introspect reads the structure of the database behind db. Internal
// sqlite_* tables and MetadataTable are skipped.
//
// Queries are issued one at a time so callers may pass a pool limited to a
// single connection, which in-memory databases require.
func Introspect(db *sql.DB) (Structure, error) {
	names, err := tableNames(db)
	if err != nil {
		return Structure{}, err
	}

	s := Structure{Tables: make([]Table, 0, len(names))}
	for _, name := range names {
		cols, err := tableColumns(db, name)
		if err != nil {
			return Structure{}, fmt.Errorf("columns of %s: %w", name, err)
		}
		idx, err := tableIndexes(db, name)
		if err != nil {
			return Structure{}, fmt.Errorf("indexes of %s: %w", name, err)
		}
		s.Tables = append(s.Tables, Table{Name: name, Columns: cols, Indexes: idx})
	}
	return s, nil
}

// FromDDL executes ddl against a scratch in-memory database and returns the
// resulting structure. It is how a schema artifact becomes comparable with a
// store on disk.
func FromDDL(ddl string) (Structure, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return Structure{}, fmt.Errorf("open scratch database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if strings.TrimSpace(ddl) != "" {
		if _, err := db.Exec(ddl); err != nil {
			return Structure{}, fmt.Errorf("apply ddl: %w", err)
		}
	}
	return Introspect(db)
}

// HasMetadataTable reports whether db carries the bookkeeping table.
func HasMetadataTable(db *sql.DB) (bool, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
		MetadataTable,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RecordedVersion returns the version name stored in MetadataTable, or ""
// when the table or key is absent.
func RecordedVersion(db *sql.DB) (string, error) {
	ok, err := HasMetadataTable(db)
	if err != nil || !ok {
		return "", err
	}

	var val string
	err = db.QueryRow(
		`SELECT value FROM `+MetadataTable+` WHERE key = ?`, VersionKey,
	).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

func tableNames(db *sql.DB) ([]string, error) {
	rows, err := db.Query(
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' AND name != ?
		 ORDER BY name`,
		MetadataTable,
	)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func tableColumns(db *sql.DB, table string) ([]Column, error) {
	rows, err := db.Query(
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`,
		table,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			c       Column
			notNull int
			dflt    sql.NullString
		)
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &dflt, &c.PrimaryKey); err != nil {
			return nil, err
		}
		c.NotNull = notNull != 0
		c.Default = dflt.String
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols, nil
}

func tableIndexes(db *sql.DB, table string) ([]string, error) {
	rows, err := db.Query(
		`SELECT name FROM sqlite_master
		 WHERE type = 'index' AND tbl_name = ? AND name NOT LIKE 'sqlite\_autoindex%' ESCAPE '\'
		 ORDER BY name`,
		table,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var idx []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		idx = append(idx, name)
	}
	return idx, rows.Err()
}
