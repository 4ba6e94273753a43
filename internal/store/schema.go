package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/highbeam/storeshift/internal/catalog"
	"github.com/highbeam/storeshift/internal/schema"
)

// metadataTableDDL creates the key-value bookkeeping table every migrated
// store carries. Only schema_version is written today.
const metadataTableDDL = `CREATE TABLE IF NOT EXISTS ` + schema.MetadataTable + ` (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
)`

// recordVersion upserts the schema_version key inside tx.
func recordVersion(tx *sql.Tx, v catalog.Version) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := tx.Exec(
		`INSERT INTO `+schema.MetadataTable+` (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		schema.VersionKey, v.Name, now,
	)
	if err != nil {
		return fmt.Errorf("record schema version %q: %w", v.Name, err)
	}
	return nil
}
