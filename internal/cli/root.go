// Package cli assembles the spockctl command tree.
//
// Dependencies are injected through [App] so tests can run commands
// against recorded dispatchers and runners instead of live servers; any
// field left nil is filled with the production implementation when the
// root command initializes.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"spockctl/internal/catalog"
	"spockctl/internal/config"
	"spockctl/internal/dispatch"
	"spockctl/internal/endpoint"
	"spockctl/internal/logging"
	"spockctl/internal/output"
	"spockctl/internal/pgnode"
)

// App holds the dependencies shared by every command.
type App struct {
	Config     *config.Config
	Printer    *output.Printer
	Runner     pgnode.Runner
	Dispatcher dispatch.Dispatcher

	// Discover reads the endpoint list from a live catalog for the
	// cluster commands' --discover flag.
	Discover func(ctx context.Context, bootstrapDSN string) ([]endpoint.Endpoint, error)

	configPath string
	verbosity  int
	logFile    string
	logLevel   string
	cleanup    func()
}

// NewRootCommand builds the spockctl command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "spockctl",
		Short:         "Operate multi-node Spock replication clusters",
		Long:          "spockctl builds and runs the ordered workflows that wire, unwire,\ngrow and shrink a Spock logical replication cluster, and manages the\nlifecycle of the individual PostgreSQL nodes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.initialize()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.cleanup != nil {
				app.cleanup()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&app.configPath, "config", "", "cluster configuration file")
	pf.IntVarP(&app.verbosity, "verbosity", "v", 0, "step output detail: 0 outcomes, 1 adds command output, 2 adds commands")
	pf.StringVar(&app.logFile, "log-file", "", "append structured JSON logs to this file")
	pf.StringVar(&app.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		newClusterCommand(app),
		newNodeCommand(app),
	)
	return root
}

// initialize fills the nil dependencies with production implementations.
func (app *App) initialize() error {
	if app.verbosity < 0 || app.verbosity > 2 {
		return fmt.Errorf("verbosity must be 0, 1 or 2, got %d", app.verbosity)
	}
	if app.Printer == nil {
		app.Printer = output.NewPrinter()
	}
	if app.Config == nil {
		cfg, err := config.NewLoader().Load(app.configPath)
		if err != nil {
			return err
		}
		app.Config = cfg
	}
	if app.Runner == nil {
		app.Runner = pgnode.ExecRunner{}
	}
	if app.Dispatcher == nil {
		app.Dispatcher = dispatch.NewPsqlDispatcher(app.psqlBinary())
	}
	if app.Discover == nil {
		app.Discover = catalog.ListNodes
	}
	if app.cleanup == nil {
		cleanup, err := logging.Initialize(logging.Options{Level: app.logLevel, File: app.logFile})
		if err != nil {
			return err
		}
		app.cleanup = cleanup
	}
	return nil
}

// psqlBinary resolves the psql executable workflow steps run through:
// the configured override, or the one under the active installed tree.
func (app *App) psqlBinary() string {
	if app.Config.PsqlBinary != "" {
		return app.Config.PsqlBinary
	}
	return filepath.Join(app.Config.BinDir(app.Config.PGVersion), "psql")
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	app := &App{}
	root := NewRootCommand(app)
	if err := root.Execute(); err != nil {
		if code, ok := IsExitError(err); ok {
			return code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
