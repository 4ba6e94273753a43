// Package planner turns a source and a target schema definition into the
// ordered chain of single-hop migration steps between them.
package planner

import (
	"github.com/highbeam/storeshift/internal/catalog"
)

// Step migrates a store across exactly one pair of adjacent catalog versions.
type Step struct {
	Source           catalog.Version
	SourceDefinition *catalog.Definition
	Target           catalog.Version
	TargetDefinition *catalog.Definition
}

func (s Step) String() string {
	return s.Source.Name + " -> " + s.Target.Name
}

// Steps returns the adjacent hops leading from source to target, ascending.
// Definitions are resolved to versions structurally through cat.Lookup.
//
// The result is empty when source or target is unknown to the catalog, when
// source is the last version and equals target, and when source lies after
// target.
//
// When source and target resolve to the same version and that version is not
// the last one, the chain runs from it to the end of the catalog rather than
// being empty. The migrator never hits this case: a store that already
// matches the target short-circuits before planning.
func Steps(cat *catalog.Catalog, source, target *catalog.Definition) []Step {
	src, ok := cat.Lookup(source)
	if !ok {
		return nil
	}
	dst, ok := cat.Lookup(target)
	if !ok {
		return nil
	}

	versions := cat.Versions()
	last := len(versions) - 1
	from, to := cat.Index(src), cat.Index(dst)

	if from == to {
		if from == last {
			return nil
		}
		to = last
	}
	if from > to {
		return nil
	}

	steps := make([]Step, 0, to-from)
	for i := from; i < to; i++ {
		srcDef, _ := cat.Definition(versions[i])
		dstDef, _ := cat.Definition(versions[i+1])
		steps = append(steps, Step{
			Source:           versions[i],
			SourceDefinition: srcDef,
			Target:           versions[i+1],
			TargetDefinition: dstDef,
		})
	}
	return steps
}

// Distance is the number of steps Steps would return.
func Distance(cat *catalog.Catalog, source, target *catalog.Definition) int {
	return len(Steps(cat, source, target))
}
