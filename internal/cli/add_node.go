package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"spockctl/internal/workflow"
)

func newAddNodeCommand(app *App, opts *clusterOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-node <name>",
		Short: "Join a new node to a running cluster",
		Long: `Join the named node to the running cluster: create it, subscribe the
existing nodes to it, wire disabled return subscriptions and their
replication slots, synchronize data from the source-flagged nodes, and
wait for replication lag to settle.

The new node must appear in the configuration file. With --discover the
existing node list comes from the live catalog instead of the config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			// The joining node is always described by the config file;
			// the catalog cannot know about it yet.
			newNode, _, err := endpointByName(app.Config.Endpoints(), name)
			if err != nil {
				return err
			}

			eps, err := app.clusterEndpoints(cmd.Context(), opts)
			if err != nil {
				return err
			}
			existing := eps
			if opts.discoverDSN == "" {
				_, existing, err = endpointByName(eps, name)
				if err != nil {
					return err
				}
			} else {
				for _, ep := range eps {
					if ep.Name == name {
						return fmt.Errorf("node %q is already a cluster member", name)
					}
				}
			}

			w, err := workflow.AddNode(existing, newNode)
			if err != nil {
				return err
			}
			return app.runWorkflow(cmd, opts, w)
		},
	}
}
