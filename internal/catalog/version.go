package catalog

import (
	"sort"
	"strconv"
	"strings"
)

// Version identifies one schema version by its human-assigned name,
// conventionally "<base> <N>". A name without a numeric suffix is the
// earliest version.
type Version struct {
	Name string
}

// NewVersion returns the version with the given name.
func NewVersion(name string) Version {
	return Version{Name: name}
}

func (v Version) String() string { return v.Name }

// Number is the integer suffix of the name, or 0 when the name has none or
// the suffix does not parse.
func (v Version) Number() int {
	i := strings.LastIndexByte(v.Name, ' ')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(v.Name[i+1:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Ordinal is the 1-based number used in mapping artifact names: the
// unsuffixed base version is V1, "Model 2" is V2.
func (v Version) Ordinal() int {
	if n := v.Number(); n > 1 {
		return n
	}
	return 1
}

// Less orders versions by numeric suffix. Equal suffixes fall back to the
// name so the order stays total.
func (v Version) Less(other Version) bool {
	a, b := v.Number(), other.Number()
	if a != b {
		return a < b
	}
	return v.Name < other.Name
}

// SortVersions sorts vs ascending in place.
func SortVersions(vs []Version) {
	sort.SliceStable(vs, func(i, j int) bool { return vs[i].Less(vs[j]) })
}
