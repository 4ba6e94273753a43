package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/highbeam/storeshift/internal/catalog"
	"github.com/highbeam/storeshift/internal/config"
	"github.com/highbeam/storeshift/internal/migrator"
	"github.com/highbeam/storeshift/internal/report"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	searchPath string
	pkg        string
	storePath  string
	storeKind  string
	jsonOutput bool
	verbose    bool
}

func (o *globalOptions) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.configPath, "config", "", "Config file (default: ~/.storeshift/config.yaml)")
	f.StringVar(&o.searchPath, "search", "", "Directory holding schema packages (default: from config)")
	f.StringVar(&o.pkg, "package", "", "Schema package name (default: from config)")
	f.StringVar(&o.storePath, "store", "", "Store file (default: from config)")
	f.StringVar(&o.storeKind, "kind", "", "Store kind (default: from config, else sqlite)")
	f.BoolVar(&o.jsonOutput, "json", false, "Output as JSON")
	f.BoolVar(&o.verbose, "verbose", false, "Log debug output to stderr")
}

// settings is the resolved configuration for one command run: config file
// first, then flags on top.
type settings struct {
	cfg    *config.Config
	kind   migrator.StoreKind
	logger *slog.Logger
}

func (o *globalOptions) settings(cmd *cobra.Command) (*settings, error) {
	path := o.configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if o.searchPath != "" {
		cfg.SearchPath = o.searchPath
	}
	if o.pkg != "" {
		cfg.Package = o.pkg
	}
	if o.storePath != "" {
		cfg.StorePath = o.storePath
	}
	if o.storeKind != "" {
		cfg.StoreKind = o.storeKind
	}

	kind, err := migrator.ParseStoreKind(cfg.StoreKind)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	return &settings{cfg: cfg, kind: kind, logger: logger}, nil
}

var (
	errNoPackage = errors.New("no schema package: set package in the config file or pass --package")
	errNoStore   = errors.New("no store: set store_path in the config file or pass --store")
)

func (s *settings) loadCatalog() (*catalog.Catalog, error) {
	if s.cfg.Package == "" {
		return nil, errNoPackage
	}
	cat, err := catalog.Load(s.cfg.Package, s.cfg.SearchPath)
	if err != nil {
		return nil, fmt.Errorf("load schema package: %w", err)
	}
	s.logger.Debug("loaded schema package",
		"package", cat.Name(),
		"versions", len(cat.Versions()),
		"current", cat.CurrentVersion().Name)
	return cat, nil
}

func (s *settings) newMigrator() (*migrator.Migrator, error) {
	if s.cfg.StorePath == "" {
		return nil, errNoStore
	}
	cat, err := s.loadCatalog()
	if err != nil {
		return nil, err
	}
	return migrator.New(cat, migrator.WithLogger(s.logger)), nil
}

// printReport writes v to the command's output as JSON or as the formatted
// table.
func printReport[T any](cmd *cobra.Command, o *globalOptions, v T, format func(T) string) {
	out := cmd.OutOrStdout()
	if o.jsonOutput {
		fmt.Fprintln(out, report.FormatJSON(v))
		return
	}
	fmt.Fprint(out, format(v))
}
