package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/highbeam/storeshift/internal/catalog"
	"github.com/highbeam/storeshift/internal/migrator"
	"github.com/highbeam/storeshift/internal/report"
	"github.com/highbeam/storeshift/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "storeshift",
		Short: "Migrate on-disk stores across schema versions",
		Long: `storeshift keeps a store file in step with a versioned schema package.

A schema package is a directory "<package>.schema" holding one SQL artifact per
version, a ".current" file naming the newest version and an optional
"mappings" directory of per-hop data mappings.`,
		SilenceUsage: true,
	}
	opts.register(rootCmd)

	rootCmd.AddCommand(versionsCmd(opts))
	rootCmd.AddCommand(planCmd(opts))
	rootCmd.AddCommand(checkCmd(opts))
	rootCmd.AddCommand(migrateCmd(opts))

	return rootCmd
}

func versionsCmd(opts *globalOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List the versions of a schema package",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.settings(cmd)
			if err != nil {
				return err
			}

			if !watch {
				cat, err := s.loadCatalog()
				if err != nil {
					return err
				}
				printReport(cmd, opts, report.Versions(cat), report.FormatVersions)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			s.logger.Info("watching schema package",
				"package", s.cfg.Package,
				"dir", catalog.PackageDir(s.cfg.Package, s.cfg.SearchPath))
			return catalog.Watch(ctx, s.cfg.Package, s.cfg.SearchPath, s.cfg.WatchDebounce, s.logger,
				func(cat *catalog.Catalog, err error) {
					if err != nil {
						s.logger.Error("reload schema package", "error", err)
						return
					}
					printReport(cmd, opts, report.Versions(cat), report.FormatVersions)
				})
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Reload and print the package whenever it changes")

	return cmd
}

func planCmd(opts *globalOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the migration steps between two versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			cat, err := s.loadCatalog()
			if err != nil {
				return err
			}

			source := cat.Definitions()[0]
			if from != "" {
				if source, err = definition(cat, from); err != nil {
					return err
				}
			}
			target, err := targetDefinition(cat, to)
			if err != nil {
				return err
			}

			pr, err := report.Plan(cat, source, target)
			if err != nil {
				return err
			}
			printReport(cmd, opts, pr, report.FormatPlan)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source version (default: oldest)")
	cmd.Flags().StringVar(&to, "to", "", "Target version (default: current)")

	return cmd
}

func checkCmd(opts *globalOptions) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report a store's version and what migrating it would do",
		Long: `Check inspects the store without changing it.

Exits non-zero when the store exists but no catalog version can read it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			m, err := s.newMigrator()
			if err != nil {
				return err
			}
			def, err := targetDefinition(m.Catalog(), target)
			if err != nil {
				return err
			}

			in, inspectErr := m.Inspect(s.cfg.StorePath, s.kind, def)
			cr, err := report.Check(m.Catalog(), in, def, inspectErr)
			if err != nil {
				return err
			}
			printReport(cmd, opts, cr, report.FormatCheck)
			return inspectErr
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Target version (default: current)")

	return cmd
}

func migrateCmd(opts *globalOptions) *cobra.Command {
	var (
		target string
		create bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring a store to the target version",
		Long: `Migrate runs every step from the store's version to the target on
temporary copies next to the store, then swaps the result into place. On
failure the store is left exactly as it was.

A missing store is not an error; use --create to make a fresh one instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			m, err := s.newMigrator()
			if err != nil {
				return err
			}
			def, err := targetDefinition(m.Catalog(), target)
			if err != nil {
				return err
			}

			res := m.Migrate(s.cfg.StorePath, s.kind, def)
			if res.Success && create {
				if err := createIfMissing(s, def, res); err != nil {
					return err
				}
			}

			printReport(cmd, opts, report.Migration(s.cfg.StorePath, def, res), report.FormatMigration)
			if !res.Success {
				return fmt.Errorf("migrate %s: %w", s.cfg.StorePath, res.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Target version (default: current)")
	cmd.Flags().BoolVar(&create, "create", false, "Create the store at the target version if it does not exist")

	return cmd
}

// createIfMissing makes a fresh store when Migrate skipped a missing one.
func createIfMissing(s *settings, def *catalog.Definition, res *migrator.Result) error {
	if _, err := os.Stat(s.cfg.StorePath); !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if s.kind != migrator.SQLite {
		return fmt.Errorf("%w: cannot create %q stores", migrator.ErrUnsupportedStoreKind, s.kind)
	}
	if err := store.Create(s.cfg.StorePath, def); err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	res.Trace = append(res.Trace, fmt.Sprintf("Created store at version %q", def.Version.Name))
	s.logger.Info("created store", "store", s.cfg.StorePath, "version", def.Version.Name)
	return nil
}

func definition(cat *catalog.Catalog, name string) (*catalog.Definition, error) {
	def, ok := cat.DefinitionByName(name)
	if !ok {
		return nil, fmt.Errorf("version %q is not in package %s", name, cat.Name())
	}
	return def, nil
}

// targetDefinition resolves name, defaulting to the current version.
func targetDefinition(cat *catalog.Catalog, name string) (*catalog.Definition, error) {
	if name == "" {
		return cat.CurrentDefinition(), nil
	}
	return definition(cat, name)
}
