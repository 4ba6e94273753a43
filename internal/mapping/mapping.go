// Package mapping resolves the explicit mapping artifact for a migration
// hop. Artifacts are SQL files named "<Package>SchemaV<N>toV<N+1>.sql" in the
// package's mappings directory. A hop without an artifact is migrated with
// an inferred mapping instead.
package mapping

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/highbeam/storeshift/internal/catalog"
)

// Mapping is an explicit mapping artifact. Its SQL runs with the previous
// working copy attached as schema "src" and the new store as "main".
type Mapping struct {
	Name string
	Path string
	SQL  string
}

// Name returns the artifact name for the hop from -> to in package pkg,
// without extension.
func Name(pkg string, from, to catalog.Version) string {
	return fmt.Sprintf("%sSchemaV%dtoV%d", pkg, from.Ordinal(), to.Ordinal())
}

// Resolver looks up mapping artifacts for one package.
type Resolver struct {
	pkg string
	dir string
}

// NewResolver resolves artifacts from the catalog's mappings directory.
func NewResolver(cat *catalog.Catalog) *Resolver {
	return &Resolver{pkg: cat.Name(), dir: cat.MappingsDir()}
}

// NewDirResolver resolves artifacts for pkg from dir.
func NewDirResolver(pkg, dir string) *Resolver {
	return &Resolver{pkg: pkg, dir: dir}
}

// Lookup returns the artifact for from -> to. ok is false when no artifact
// exists, which is not an error.
func (r *Resolver) Lookup(from, to catalog.Version) (Mapping, bool, error) {
	if r == nil || r.dir == "" {
		return Mapping{}, false, nil
	}

	name := Name(r.pkg, from, to)
	path := filepath.Join(r.dir, name+catalog.ArtifactExt)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Mapping{}, false, nil
	}
	if err != nil {
		return Mapping{}, false, fmt.Errorf("read mapping %s: %w", name, err)
	}
	return Mapping{Name: name, Path: path, SQL: string(data)}, true, nil
}
