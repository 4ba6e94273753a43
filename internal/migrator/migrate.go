package migrator

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/highbeam/storeshift/internal/catalog"
	"github.com/highbeam/storeshift/internal/planner"
)

// Result is the outcome of Migrate. Success is the only authoritative
// signal; Trace is a human-readable account of what happened and Err carries
// the failure, if any, for callers that want to inspect it.
type Result struct {
	Success bool
	Trace   []string
	Steps   []planner.Step
	Err     error
}

// run is the state of one Migrate call.
type run struct {
	m      *Migrator
	driver Driver
	store  string
	id     string
	logger *slog.Logger
	temps  []string
	result Result
}

// Migrate brings the store at storePath to target.
//
// A missing store and a store that is already compatible with target are
// both successes with nothing done; their trace messages tell them apart.
// Otherwise the store's current version is resolved from the catalog, the
// chain of steps is planned and each step runs against a fresh temporary
// file next to the store. Only after the whole chain succeeds is the store
// replaced, atomically. On any failure all temporary files are removed and
// the store is left untouched.
func (m *Migrator) Migrate(storePath string, kind StoreKind, target *catalog.Definition) *Result {
	r := &run{
		m:      m,
		store:  storePath,
		id:     m.newID(),
		logger: m.logger.With("store", storePath),
	}
	if err := r.execute(kind, target); err != nil {
		r.fail(err)
	}
	return &r.result
}

func (r *run) execute(kind StoreKind, target *catalog.Definition) error {
	if target == nil {
		return ErrNoTarget
	}
	d, err := r.m.driver(kind)
	if err != nil {
		return err
	}
	r.driver = d

	if _, err := os.Stat(r.store); errors.Is(err, os.ErrNotExist) {
		r.succeed("Skipping migration: source store does not exist at %s", r.store)
		return nil
	} else if err != nil {
		return fmt.Errorf("stat store: %w", err)
	}

	md, err := d.Metadata(r.store)
	if err != nil {
		return fmt.Errorf("read store metadata: %w", err)
	}
	if r.m.compatible(target, md) {
		r.succeed("Skipping migration: no migration necessary, store is compatible with %q", target.Version.Name)
		return nil
	}

	current, ok := r.m.resolve(md)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnrecognizedSourceSchema, r.store)
	}
	r.tracef("Store is at version %q", current.Version.Name)

	steps := planner.Steps(r.m.catalog, current, target)
	if len(steps) == 0 {
		r.succeed("Skipping migration: no migration steps from %q to %q", current.Version.Name, target.Version.Name)
		return nil
	}
	r.result.Steps = steps
	r.logger.Info("migrating store",
		"from", current.Version.Name,
		"to", target.Version.Name,
		"steps", len(steps))

	final, err := r.executeSteps(steps)
	if err != nil {
		return err
	}
	if err := r.commit(final); err != nil {
		return err
	}
	r.cleanup()

	r.succeed("Migrated store from %q to %q in %d steps", current.Version.Name, target.Version.Name, len(steps))
	return nil
}

// executeSteps runs every step and returns the path of the final working
// copy. At most the current working copy and the one being written exist at
// any time.
func (r *run) executeSteps(steps []planner.Step) (string, error) {
	working := r.tempPath(0)
	r.temps = append(r.temps, working)
	if err := r.driver.Copy(r.store, working); err != nil {
		return "", fmt.Errorf("copy store: %w", err)
	}

	for i, step := range steps {
		r.tracef("Migrating from %q to %q", step.Source.Name, step.Target.Name)
		r.logger.Debug("migration step", "from", step.Source.Name, "to", step.Target.Name)

		next := r.tempPath(i + 1)
		r.temps = append(r.temps, next)
		if err := r.m.steps.MigrateStep(working, next, step.SourceDefinition, step.TargetDefinition); err != nil {
			return "", fmt.Errorf("%w: %s -> %s: %w", ErrStepFailed, step.Source.Name, step.Target.Name, err)
		}

		r.discard(working)
		working = next
	}
	return working, nil
}

func (r *run) commit(final string) error {
	size := int64(0)
	if info, err := os.Stat(final); err == nil {
		size = info.Size()
	}

	if err := r.m.replacer.ReplaceStore(r.store, final); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	// The replace consumed the file; only sidecars can be left.
	r.discard(final)

	r.tracef("Replaced store with migrated copy (%s)", humanize.Bytes(uint64(size)))
	return nil
}

// tempPath names working copy i. Copies live beside the store so the final
// rename stays on one file system, and carry the run id so concurrent runs
// never share a name.
func (r *run) tempPath(i int) string {
	dir, base := filepath.Split(r.store)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.%d.migrating", base, r.id, i))
}

// discard removes a working copy that is no longer needed. A copy that
// cannot be removed stays tracked so cleanup tries it again.
func (r *run) discard(path string) {
	if err := r.driver.Remove(path); err != nil {
		r.logger.Warn("remove working copy", "path", path, "error", err)
		return
	}
	for i, p := range r.temps {
		if p == path {
			r.temps = append(r.temps[:i], r.temps[i+1:]...)
			break
		}
	}
}

// cleanup makes one more attempt at every working copy still tracked.
func (r *run) cleanup() {
	for _, p := range append([]string(nil), r.temps...) {
		r.discard(p)
	}
}

func (r *run) tracef(format string, args ...any) {
	r.result.Trace = append(r.result.Trace, fmt.Sprintf(format, args...))
}

func (r *run) succeed(format string, args ...any) {
	r.tracef(format, args...)
	r.result.Success = true
	r.logger.Info(r.result.Trace[len(r.result.Trace)-1])
}

func (r *run) fail(err error) {
	if r.driver != nil {
		r.cleanup()
	}
	r.result.Success = false
	r.result.Err = err
	r.tracef("Migration failed: %v", err)
	r.logger.Error("migration failed", "error", err)
}
