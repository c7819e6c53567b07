package cli

import (
	"github.com/spf13/cobra"

	"spockctl/internal/pgnode"
)

func newNodeCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage the lifecycle of individual PostgreSQL nodes",
	}
	cmd.AddCommand(
		newNodeInitCommand(app),
		newNodeStartCommand(app),
		newNodeStopCommand(app),
		newNodeRestartCommand(app),
		newNodeCleanupCommand(app),
		newNodeDestroyCommand(app),
		newNodeCompileCommand(app),
		newNodeReplicaCommand(app),
	)
	return cmd
}

// nodeManager builds a Manager from the app's collaborators. initialize()
// has already filled them in by the time any RunE executes.
func (app *App) nodeManager() *pgnode.Manager {
	return pgnode.NewManager(app.Config, app.Runner, app.Printer)
}

func newNodeInitCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init <name>...",
		Short: "Initialize data directories and start nodes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := app.nodeManager()
			for _, name := range args {
				if err := m.Init(cmd.Context(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newNodeStartCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "start <name>...",
		Short: "Start node servers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := app.nodeManager()
			for _, name := range args {
				if err := m.Start(cmd.Context(), name); err != nil {
					return err
				}
				app.Printer.Success("started %s", name)
			}
			return nil
		},
	}
}

func newNodeStopCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <name>...",
		Short: "Stop node servers (fast shutdown)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := app.nodeManager()
			for _, name := range args {
				if err := m.Stop(cmd.Context(), name); err != nil {
					return err
				}
				app.Printer.Success("stopped %s", name)
			}
			return nil
		},
	}
}

func newNodeRestartCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <name>...",
		Short: "Restart node servers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := app.nodeManager()
			for _, name := range args {
				if err := m.Restart(cmd.Context(), name); err != nil {
					return err
				}
				app.Printer.Success("restarted %s", name)
			}
			return nil
		},
	}
}

func newNodeCleanupCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <name>...",
		Short: "Reset node databases for a fresh wiring run",
		Long: `Drop and recreate each node's database, reinstall the spock and dblink
extensions, and drop leftover logical replication slots and replication
origins.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := app.nodeManager()
			for _, name := range args {
				if err := m.Cleanup(cmd.Context(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newNodeDestroyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <name>...",
		Short: "Stop nodes and delete their data directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := app.nodeManager()
			for _, name := range args {
				if err := m.Destroy(cmd.Context(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newNodeCompileCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "compile [version]",
		Short: "Build and install PostgreSQL from source",
		Long: `Locate the postgresql-<version> source tree under the configured
source directory, configure it with assertions and debug symbols, and
install it under the bin directory. The configured cluster version is
built when no version argument is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := app.Config.PGVersion
			if len(args) == 1 {
				version = args[0]
			}
			return app.nodeManager().Compile(cmd.Context(), version)
		},
	}
}

func newNodeReplicaCommand(app *App) *cobra.Command {
	var sync bool
	cmd := &cobra.Command{
		Use:   "replica <primary> <replica>",
		Short: "Seed a streaming replica from a primary node",
		Long: `Prepare the primary for streaming replication (replication role,
physical slot, configuration and pg_hba entries, restart) and seed the
replica's data directory with pg_basebackup. The replica is left
stopped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.nodeManager().CreateReplica(cmd.Context(), pgnode.ReplicaOptions{
				Primary: args[0],
				Replica: args[1],
				Sync:    sync,
			})
		},
	}
	cmd.Flags().BoolVar(&sync, "sync", false, "configure synchronous replication")
	return cmd
}
