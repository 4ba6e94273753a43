package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/highbeam/storeshift/internal/schematest"
)

func TestReplaceStore_SwapsContent(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "store.db")
	src := filepath.Join(dir, ".store.db.new")
	schematest.CreateStore(t, dst, schematest.ModelDDL(1), "old")
	schematest.CreateStore(t, src, schematest.ModelDDL(2), "new")

	require.NoError(t, NewReplacer().ReplaceStore(dst, src))

	assert.Equal(t, []string{"new"}, schematest.ItemNames(t, dst))
	assert.Equal(t, []string{"store.db"}, schematest.DirEntries(t, dir))
}

func TestReplaceStore_RemovesStaleSidecars(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "store.db")
	src := filepath.Join(dir, ".store.db.new")
	schematest.CreateStore(t, dst, schematest.ModelDDL(1), "old")
	schematest.CreateStore(t, src, schematest.ModelDDL(2), "new")
	schematest.WriteFile(t, dst+"-wal", "stale")
	schematest.WriteFile(t, dst+"-shm", "stale")

	require.NoError(t, NewReplacer().ReplaceStore(dst, src))

	assert.Equal(t, []string{"new"}, schematest.ItemNames(t, dst))
	assert.Equal(t, []string{"store.db"}, schematest.DirEntries(t, dir))
}

func TestReplaceStore_WALModeDestination(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "store.db")
	src := filepath.Join(dir, ".store.db.new")

	db, err := sql.Open("sqlite", "file:"+dst+"?_pragma=journal_mode(wal)")
	require.NoError(t, err)
	_, err = db.Exec(schematest.ModelDDL(1))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO items (name) VALUES ('old')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	schematest.CreateStore(t, src, schematest.ModelDDL(2), "new")

	require.NoError(t, NewReplacer().ReplaceStore(dst, src))

	assert.Equal(t, []string{"new"}, schematest.ItemNames(t, dst))
	_, err = os.Stat(dst + "-wal")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReplaceStore_MissingSourceLeavesDestination(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "store.db")
	schematest.CreateStore(t, dst, schematest.ModelDDL(1), "old")
	before, err := os.ReadFile(dst)
	require.NoError(t, err)

	require.Error(t, NewReplacer().ReplaceStore(dst, filepath.Join(dir, "missing.db")))

	after, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
