// Package catalog loads the versioned schema artifacts of a schema package
// and orders them into the linear chain the migration planner walks.
//
// A package is a directory named "<Package>.schema" holding one
// "<Version Name>.sql" artifact per version and a ".current" file naming the
// current version. Mapping artifacts live in its "mappings" subdirectory.
package catalog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/highbeam/storeshift/internal/schema"
)

const (
	// PackageSuffix is appended to the package name to form its directory.
	PackageSuffix = ".schema"
	// ArtifactExt is the extension of version artifacts.
	ArtifactExt = ".sql"
	// CurrentFile names the current version inside the package directory.
	CurrentFile = ".current"
	// MappingsDir holds explicit mapping artifacts.
	MappingsDir = "mappings"
)

var (
	ErrPackageNotFound       = errors.New("schema package not found")
	ErrEmptyPackage          = errors.New("schema package has no versions")
	ErrDuplicateVersion      = errors.New("duplicate schema version")
	ErrNoCurrentVersion      = errors.New("schema package has no current version")
	ErrUnknownCurrentVersion = errors.New("current version is not in the package")
	ErrCurrentNotLatest      = errors.New("current version is not the latest version")
)

// Definition is the structural description of one schema version.
type Definition struct {
	Version   Version
	DDL       string
	Path      string
	Structure schema.Structure

	fingerprint string
}

// NewDefinition parses ddl into a Definition for version v.
func NewDefinition(v Version, ddl string) (*Definition, error) {
	s, err := schema.FromDDL(ddl)
	if err != nil {
		return nil, fmt.Errorf("schema %q: %w", v.Name, err)
	}
	return &Definition{
		Version:     v,
		DDL:         ddl,
		Structure:   s,
		fingerprint: s.Fingerprint(),
	}, nil
}

// Fingerprint identifies the definition's structure.
func (d *Definition) Fingerprint() string {
	if d.fingerprint == "" {
		d.fingerprint = d.Structure.Fingerprint()
	}
	return d.fingerprint
}

// Equal reports structural equality. Version names are not compared.
func (d *Definition) Equal(other *Definition) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Fingerprint() == other.Fingerprint()
}

// CompatibleWith reports whether a store with metadata md can be read with d.
func (d *Definition) CompatibleWith(md schema.Metadata) bool {
	return schema.Compatible(d.Structure, md)
}

// Catalog is the immutable, ordered set of versions of one schema package.
// It is safe for concurrent readers.
type Catalog struct {
	name     string
	dir      string
	versions []Version
	defs     map[Version]*Definition
	current  Version
}

// PackageDir returns where Load looks for packageName.
func PackageDir(packageName, searchLocation string) string {
	return filepath.Join(searchLocation, packageName+PackageSuffix)
}

// Load discovers every version artifact of packageName under searchLocation.
func Load(packageName, searchLocation string) (*Catalog, error) {
	dir := PackageDir(packageName, searchLocation)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read package %s: %w", dir, err)
	}

	var defs []*Definition
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ArtifactExt || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", path, err)
		}
		def, err := NewDefinition(NewVersion(strings.TrimSuffix(e.Name(), ArtifactExt)), string(data))
		if err != nil {
			return nil, fmt.Errorf("load artifact %s: %w", path, err)
		}
		def.Path = path
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPackage, dir)
	}

	current, err := readCurrent(dir)
	if err != nil {
		return nil, err
	}

	return New(packageName, dir, defs, current)
}

// New builds a catalog from already parsed definitions. dir may be empty for
// catalogs that have no on-disk package.
func New(packageName, dir string, defs []*Definition, current Version) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPackage, packageName)
	}

	c := &Catalog{
		name: packageName,
		dir:  dir,
		defs: make(map[Version]*Definition, len(defs)),
	}
	for _, d := range defs {
		if _, dup := c.defs[d.Version]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateVersion, d.Version.Name)
		}
		c.defs[d.Version] = d
		c.versions = append(c.versions, d.Version)
	}
	SortVersions(c.versions)

	if current.Name == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoCurrentVersion, packageName)
	}
	if _, ok := c.defs[current]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurrentVersion, current.Name)
	}
	if last := c.versions[len(c.versions)-1]; last != current {
		return nil, fmt.Errorf("%w: current %q, latest %q", ErrCurrentNotLatest, current.Name, last.Name)
	}
	c.current = current
	return c, nil
}

// readCurrent returns the first non-empty line of the package's CurrentFile.
func readCurrent(dir string) (Version, error) {
	data, err := os.ReadFile(filepath.Join(dir, CurrentFile))
	if errors.Is(err, os.ErrNotExist) {
		return Version{}, fmt.Errorf("%w: %s", ErrNoCurrentVersion, dir)
	}
	if err != nil {
		return Version{}, fmt.Errorf("read current version: %w", err)
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		return NewVersion(strings.TrimSuffix(line, ArtifactExt)), nil
	}
	return Version{}, fmt.Errorf("%w: %s is empty", ErrNoCurrentVersion, CurrentFile)
}

// Name is the package name the catalog was loaded for.
func (c *Catalog) Name() string { return c.name }

// Dir is the package directory, empty for in-memory catalogs.
func (c *Catalog) Dir() string { return c.dir }

// MappingsDir is where explicit mapping artifacts are looked up.
func (c *Catalog) MappingsDir() string {
	if c.dir == "" {
		return ""
	}
	return filepath.Join(c.dir, MappingsDir)
}

// Versions returns the versions in ascending order. The slice is a copy.
func (c *Catalog) Versions() []Version {
	return append([]Version(nil), c.versions...)
}

// Definitions returns the definitions in ascending version order.
func (c *Catalog) Definitions() []*Definition {
	out := make([]*Definition, len(c.versions))
	for i, v := range c.versions {
		out[i] = c.defs[v]
	}
	return out
}

// CurrentVersion is the designated current (latest) version.
func (c *Catalog) CurrentVersion() Version { return c.current }

// CurrentDefinition is the definition of CurrentVersion.
func (c *Catalog) CurrentDefinition() *Definition { return c.defs[c.current] }

// Definition returns the definition for v; ok is false for unknown versions.
func (c *Catalog) Definition(v Version) (*Definition, bool) {
	d, ok := c.defs[v]
	return d, ok
}

// DefinitionByName is Definition keyed by version name.
func (c *Catalog) DefinitionByName(name string) (*Definition, bool) {
	return c.Definition(NewVersion(name))
}

// Index returns the position of v in Versions, or -1.
func (c *Catalog) Index(v Version) int {
	for i, cv := range c.versions {
		if cv == v {
			return i
		}
	}
	return -1
}

// Lookup resolves a definition obtained elsewhere back to its version. A
// definition owned by this catalog resolves to itself; otherwise the first
// structurally equal definition in ascending order wins.
func (c *Catalog) Lookup(def *Definition) (Version, bool) {
	if def == nil {
		return Version{}, false
	}
	if own, ok := c.defs[def.Version]; ok && own == def {
		return def.Version, true
	}
	for _, v := range c.versions {
		if c.defs[v].Equal(def) {
			return v, true
		}
	}
	return Version{}, false
}
