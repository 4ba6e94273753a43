package catalog_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/highbeam/storeshift/internal/catalog"
	"github.com/highbeam/storeshift/internal/schematest"
)

func names(vs []catalog.Version) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Name
	}
	return out
}

func TestVersionNumber(t *testing.T) {
	cases := []struct {
		name string
		want int
	}{
		{"Model", 0},
		{"Model 2", 2},
		{"Model 10", 10},
		{"My Model 7", 7},
		{"Model v3", 0},
		{"Model -4", 0},
		{"", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, catalog.NewVersion(tc.name).Number(), tc.name)
	}
}

func TestVersionOrdinal(t *testing.T) {
	assert.Equal(t, 1, catalog.NewVersion("Model").Ordinal())
	assert.Equal(t, 1, catalog.NewVersion("Model 1").Ordinal())
	assert.Equal(t, 2, catalog.NewVersion("Model 2").Ordinal())
	assert.Equal(t, 12, catalog.NewVersion("Model 12").Ordinal())
}

func TestSortVersions_NumericNotLexical(t *testing.T) {
	want := []string{"Model", "Model 2", "Model 3", "Model 9", "Model 10", "Model 11", "Model 20"}

	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 20; round++ {
		vs := make([]catalog.Version, len(want))
		for i, n := range want {
			vs[i] = catalog.NewVersion(n)
		}
		rng.Shuffle(len(vs), func(i, j int) { vs[i], vs[j] = vs[j], vs[i] })

		catalog.SortVersions(vs)
		require.Equal(t, want, names(vs))
	}
}

func TestSortVersions_UnparsableSuffixSortsWithBase(t *testing.T) {
	vs := []catalog.Version{
		catalog.NewVersion("Model 2"),
		catalog.NewVersion("Model beta"),
		catalog.NewVersion("Model"),
	}
	catalog.SortVersions(vs)
	assert.Equal(t, []string{"Model", "Model beta", "Model 2"}, names(vs))
}

func TestLoad_OrdersVersionsAndFindsCurrent(t *testing.T) {
	root := t.TempDir()
	dir := schematest.WritePackage(t, root, "Model", 10)

	cat, err := catalog.Load("Model", root)
	require.NoError(t, err)

	assert.Equal(t, "Model", cat.Name())
	assert.Equal(t, dir, cat.Dir())
	assert.Equal(t, filepath.Join(dir, catalog.MappingsDir), cat.MappingsDir())

	vs := cat.Versions()
	require.Len(t, vs, 10)
	assert.Equal(t, "Model", vs[0].Name)
	assert.Equal(t, "Model 2", vs[1].Name)
	assert.Equal(t, "Model 10", vs[9].Name)

	assert.Equal(t, vs[9], cat.CurrentVersion())
	assert.Equal(t, vs[9], cat.CurrentDefinition().Version)
	assert.Equal(t, filepath.Join(dir, "Model 10.sql"), cat.CurrentDefinition().Path)
}

func TestLoad_PackageNotFound(t *testing.T) {
	_, err := catalog.Load("Missing", t.TempDir())
	require.ErrorIs(t, err, catalog.ErrPackageNotFound)
}

func TestLoad_EmptyPackage(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(catalog.PackageDir("Model", root), 0o755))

	_, err := catalog.Load("Model", root)
	require.ErrorIs(t, err, catalog.ErrEmptyPackage)
}

func TestLoad_EmptyPackageWithPointerAndStrayFiles(t *testing.T) {
	root := t.TempDir()
	dir := catalog.PackageDir("Model", root)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, catalog.MappingsDir), 0o755))
	schematest.WriteFile(t, filepath.Join(dir, catalog.CurrentFile), "Model 2\n")
	schematest.WriteFile(t, filepath.Join(dir, "README.md"), "notes")

	_, err := catalog.Load("Model", root)
	require.ErrorIs(t, err, catalog.ErrEmptyPackage)
	require.NotErrorIs(t, err, catalog.ErrUnknownCurrentVersion)
}

func TestLoad_MissingCurrentPointer(t *testing.T) {
	root := t.TempDir()
	dir := schematest.WritePackage(t, root, "Model", 3)
	require.NoError(t, os.Remove(filepath.Join(dir, catalog.CurrentFile)))

	_, err := catalog.Load("Model", root)
	require.ErrorIs(t, err, catalog.ErrNoCurrentVersion)
}

func TestLoad_CurrentPointerToUnknownVersion(t *testing.T) {
	root := t.TempDir()
	dir := schematest.WritePackage(t, root, "Model", 3)
	schematest.WriteFile(t, filepath.Join(dir, catalog.CurrentFile), "Model 7\n")

	_, err := catalog.Load("Model", root)
	require.ErrorIs(t, err, catalog.ErrUnknownCurrentVersion)
}

func TestLoad_CurrentMustBeLatest(t *testing.T) {
	root := t.TempDir()
	dir := schematest.WritePackage(t, root, "Model", 3)
	schematest.WriteFile(t, filepath.Join(dir, catalog.CurrentFile), "\nModel 2.sql\n")

	_, err := catalog.Load("Model", root)
	require.ErrorIs(t, err, catalog.ErrCurrentNotLatest)
}

func TestLoad_BadArtifactFails(t *testing.T) {
	root := t.TempDir()
	dir := schematest.WritePackage(t, root, "Model", 2)
	schematest.WriteFile(t, filepath.Join(dir, "Model 3.sql"), "CREATE TABLE (")
	schematest.WriteFile(t, filepath.Join(dir, catalog.CurrentFile), "Model 3")

	_, err := catalog.Load("Model", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Model 3.sql")
}

func TestLoad_IgnoresMappingsAndOtherFiles(t *testing.T) {
	root := t.TempDir()
	dir := schematest.WritePackage(t, root, "Model", 2)
	schematest.WriteFile(t, filepath.Join(dir, catalog.MappingsDir, "ModelSchemaV1toV2.sql"), "SELECT 1;")
	schematest.WriteFile(t, filepath.Join(dir, "README.md"), "notes")

	cat, err := catalog.Load("Model", root)
	require.NoError(t, err)
	assert.Equal(t, []string{"Model", "Model 2"}, names(cat.Versions()))
}

func TestNew_RejectsDuplicates(t *testing.T) {
	defs := schematest.Definitions(t, "Model", 2)
	defs = append(defs, defs[1])

	_, err := catalog.New("Model", "", defs, catalog.NewVersion("Model 2"))
	require.ErrorIs(t, err, catalog.ErrDuplicateVersion)
}

func TestDefinition_UnknownVersion(t *testing.T) {
	cat := schematest.Catalog(t, "Model", 3)

	_, ok := cat.Definition(catalog.NewVersion("Model 4"))
	assert.False(t, ok)

	d, ok := cat.DefinitionByName("Model 2")
	require.True(t, ok)
	assert.Equal(t, "Model 2", d.Version.Name)
	assert.Equal(t, 1, cat.Index(d.Version))
	assert.Equal(t, -1, cat.Index(catalog.NewVersion("Model 4")))
}

func TestLookup_ByStructureNotName(t *testing.T) {
	cat := schematest.Catalog(t, "Model", 4)

	// Same structure as "Model 3" but parsed independently under another name.
	foreign, err := catalog.NewDefinition(catalog.NewVersion("Whatever"), schematest.ModelDDL(3))
	require.NoError(t, err)

	v, ok := cat.Lookup(foreign)
	require.True(t, ok)
	assert.Equal(t, "Model 3", v.Name)

	unknown, err := catalog.NewDefinition(catalog.NewVersion("Model 3"), `CREATE TABLE other (id INTEGER);`)
	require.NoError(t, err)
	_, ok = cat.Lookup(unknown)
	assert.False(t, ok)

	_, ok = cat.Lookup(nil)
	assert.False(t, ok)
}

func TestDefinitions_MutuallyDistinct(t *testing.T) {
	defs := schematest.Catalog(t, "Model", 10).Definitions()
	for i := range defs {
		for j := range defs {
			assert.Equal(t, i == j, defs[i].Equal(defs[j]), "%s vs %s", defs[i].Version, defs[j].Version)
		}
	}
}
