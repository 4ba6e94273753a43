// Package report turns catalogs, plans and migration results into
// serializable report structs for the CLI. Each report renders either as a
// terminal table (format.go) or as JSON.
package report

import (
	"fmt"

	"github.com/highbeam/storeshift/internal/catalog"
	"github.com/highbeam/storeshift/internal/mapping"
	"github.com/highbeam/storeshift/internal/migrator"
	"github.com/highbeam/storeshift/internal/planner"
)

// VersionEntry describes one catalog version.
type VersionEntry struct {
	Name        string `json:"name"`
	Number      int    `json:"number"`
	Current     bool   `json:"current"`
	Tables      int    `json:"tables"`
	Fingerprint string `json:"fingerprint"`
}

// VersionsReport lists a schema package in version order.
type VersionsReport struct {
	Package  string         `json:"package"`
	Dir      string         `json:"dir,omitempty"`
	Current  string         `json:"current"`
	Versions []VersionEntry `json:"versions"`
}

// StepEntry is one planned hop. Mapping names the explicit mapping artifact
// for the hop, or "inferred" when columns are carried over by name.
type StepEntry struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Mapping string `json:"mapping"`
}

// PlanReport is the ordered chain of steps between two versions.
type PlanReport struct {
	Package string      `json:"package"`
	From    string      `json:"from"`
	To      string      `json:"to"`
	Steps   []StepEntry `json:"steps"`
}

// CheckReport describes a store relative to a target version.
type CheckReport struct {
	Path            string      `json:"path"`
	Exists          bool        `json:"exists"`
	Version         string      `json:"version,omitempty"`
	RecordedVersion string      `json:"recorded_version,omitempty"`
	SizeBytes       int64       `json:"size_bytes,omitempty"`
	Target          string      `json:"target"`
	Compatible      bool        `json:"compatible"`
	Steps           []StepEntry `json:"steps,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// MigrationReport is the outcome of one Migrate call.
type MigrationReport struct {
	Path    string   `json:"path"`
	Target  string   `json:"target"`
	Success bool     `json:"success"`
	Steps   int      `json:"steps"`
	Trace   []string `json:"trace"`
	Error   string   `json:"error,omitempty"`
}

// Versions builds the versions report for cat.
func Versions(cat *catalog.Catalog) *VersionsReport {
	r := &VersionsReport{
		Package:  cat.Name(),
		Dir:      cat.Dir(),
		Current:  cat.CurrentVersion().Name,
		Versions: make([]VersionEntry, 0, len(cat.Versions())),
	}
	for _, d := range cat.Definitions() {
		r.Versions = append(r.Versions, VersionEntry{
			Name:        d.Version.Name,
			Number:      d.Version.Number(),
			Current:     d.Version == cat.CurrentVersion(),
			Tables:      len(d.Structure.Tables),
			Fingerprint: d.Fingerprint(),
		})
	}
	return r
}

// Plan builds the plan report from source to target.
func Plan(cat *catalog.Catalog, source, target *catalog.Definition) (*PlanReport, error) {
	entries, err := stepEntries(cat, planner.Steps(cat, source, target))
	if err != nil {
		return nil, err
	}
	return &PlanReport{
		Package: cat.Name(),
		From:    source.Version.Name,
		To:      target.Version.Name,
		Steps:   entries,
	}, nil
}

// Check builds the check report from an inspection. inspectErr is the error
// Inspect returned alongside in, if any.
func Check(cat *catalog.Catalog, in *migrator.Inspection, target *catalog.Definition, inspectErr error) (*CheckReport, error) {
	r := &CheckReport{Target: target.Version.Name}
	if inspectErr != nil {
		r.Error = inspectErr.Error()
	}
	if in == nil {
		return r, nil
	}

	r.Path = in.Path
	r.Exists = in.Exists
	r.Compatible = in.Compatible
	if in.Exists {
		r.RecordedVersion = in.Metadata.VersionName
		r.SizeBytes = in.Metadata.SizeBytes
	}
	switch {
	case in.Current != nil:
		r.Version = in.Current.Version.Name
	case in.Compatible:
		r.Version = target.Version.Name
	}
	steps, err := stepEntries(cat, in.Steps)
	if err != nil {
		return nil, err
	}
	r.Steps = steps
	return r, nil
}

// Migration builds the migration report from a Result.
func Migration(path string, target *catalog.Definition, res *migrator.Result) *MigrationReport {
	r := &MigrationReport{
		Path:    path,
		Success: res.Success,
		Steps:   len(res.Steps),
		Trace:   res.Trace,
	}
	if target != nil {
		r.Target = target.Version.Name
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}

func stepEntries(cat *catalog.Catalog, steps []planner.Step) ([]StepEntry, error) {
	resolver := mapping.NewResolver(cat)
	entries := make([]StepEntry, 0, len(steps))
	for _, s := range steps {
		m, ok, err := resolver.Lookup(s.Source, s.Target)
		if err != nil {
			return nil, fmt.Errorf("look up mapping %s: %w", s, err)
		}
		name := "inferred"
		if ok {
			name = m.Name
		}
		entries = append(entries, StepEntry{From: s.Source.Name, To: s.Target.Name, Mapping: name})
	}
	return entries, nil
}
