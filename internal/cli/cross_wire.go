package cli

import (
	"github.com/spf13/cobra"

	"spockctl/internal/workflow"
)

func newCrossWireCommand(app *App, opts *clusterOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cross-wire",
		Short: "Wire full mesh replication between all nodes",
		Long: `Create a Spock node on every endpoint, a per-node replication set,
and a subscription for every ordered pair of distinct nodes, so each
node replicates to every other.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eps, err := app.clusterEndpoints(cmd.Context(), opts)
			if err != nil {
				return err
			}
			w, err := workflow.CrossWireAll(eps)
			if err != nil {
				return err
			}
			return app.runWorkflow(cmd, opts, w)
		},
	}
}
