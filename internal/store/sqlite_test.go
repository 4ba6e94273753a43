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

func TestMetadata_ReadsStructureAndVersion(t *testing.T) {
	cat := schematest.Catalog(t, "Model", 3)
	def, _ := cat.DefinitionByName("Model 2")

	path := filepath.Join(t.TempDir(), "store.db")
	require.NoError(t, Create(path, def))

	md, err := NewDriver().Metadata(path)
	require.NoError(t, err)
	assert.Equal(t, "Model 2", md.VersionName)
	assert.Positive(t, md.SizeBytes)
	assert.True(t, def.CompatibleWith(md))

	for _, other := range cat.Definitions() {
		if other != def {
			assert.False(t, other.CompatibleWith(md), other.Version.Name)
		}
	}
}

func TestMetadata_StoreWithoutBookkeeping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.db")
	schematest.CreateStore(t, path, schematest.ModelDDL(1), "a")

	md, err := NewDriver().Metadata(path)
	require.NoError(t, err)
	assert.Empty(t, md.VersionName)
	assert.Equal(t, schematest.Definitions(t, "Model", 1)[0].Fingerprint(), md.Structure.Fingerprint())
}

func TestMetadata_WALStoreLeavesNoSidecars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")
	schematest.CreateStore(t, path, schematest.ModelDDL(2), "a")
	schematest.UseWAL(t, path)
	require.Equal(t, []string{"store.db"}, schematest.DirEntries(t, dir))

	md, err := NewDriver().Metadata(path)
	require.NoError(t, err)
	assert.Len(t, md.Structure.Tables, 1)
	assert.Equal(t, []string{"store.db"}, schematest.DirEntries(t, dir))

	require.NoError(t, NewDriver().Copy(path, filepath.Join(dir, "copy.db")))
	assert.Equal(t, []string{"copy.db", "store.db"}, schematest.DirEntries(t, dir))
}

func TestMetadata_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.db")
	schematest.WriteFile(t, path, "this is definitely not a sqlite database, just some text padding it out")

	_, err := NewDriver().Metadata(path)
	require.ErrorIs(t, err, ErrNotAStore)
}

func TestMetadata_MissingFile(t *testing.T) {
	_, err := NewDriver().Metadata(filepath.Join(t.TempDir(), "nope.db"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCopy_SnapshotsStoreAndLeavesSourceAlone(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "store.db")
	dst := filepath.Join(dir, "copy.db")
	schematest.CreateStore(t, src, schematest.ModelDDL(2), "a", "b")
	before, err := os.ReadFile(src)
	require.NoError(t, err)

	require.NoError(t, NewDriver().Copy(src, dst))

	assert.Equal(t, []string{"a", "b"}, schematest.ItemNames(t, dst))
	after, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCopy_IncludesUncheckpointedWAL(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "store.db")
	dst := filepath.Join(dir, "copy.db")

	db, err := sql.Open("sqlite", "file:"+src+"?_pragma=journal_mode(wal)")
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(schematest.ModelDDL(1))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO items (name) VALUES ('in the wal')`)
	require.NoError(t, err)

	require.NoError(t, NewDriver().Copy(src, dst))
	assert.Equal(t, []string{"in the wal"}, schematest.ItemNames(t, dst))
}

func TestCopy_RefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "store.db")
	dst := filepath.Join(dir, "copy.db")
	schematest.CreateStore(t, src, schematest.ModelDDL(1))
	schematest.WriteFile(t, dst, "occupied")

	require.ErrorIs(t, NewDriver().Copy(src, dst), ErrStoreExists)
}

func TestRemove_DeletesSidecars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")
	for _, p := range append([]string{path}, sidecarPaths(path)...) {
		schematest.WriteFile(t, p, "x")
	}

	require.NoError(t, NewDriver().Remove(path))
	assert.Empty(t, schematest.DirEntries(t, dir))

	require.NoError(t, NewDriver().Remove(path), "removing twice is fine")
}

func TestCreate_RefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	def := schematest.Catalog(t, "Model", 1).CurrentDefinition()
	require.NoError(t, Create(path, def))

	require.ErrorIs(t, Create(path, def), ErrStoreExists)
}
