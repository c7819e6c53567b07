package cli

import (
	"github.com/spf13/cobra"

	"spockctl/internal/workflow"
)

func newRemoveNodeCommand(app *App, opts *clusterOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-node <name>",
		Short: "Detach a node from the cluster",
		Long: `Drop every subscription between the named node and the rest of the
cluster, in both directions, then drop the node itself. All steps are
best-effort so a half-joined node can be removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eps, err := app.clusterEndpoints(cmd.Context(), opts)
			if err != nil {
				return err
			}
			target, existing, err := endpointByName(eps, args[0])
			if err != nil {
				return err
			}
			w, err := workflow.RemoveNode(existing, target)
			if err != nil {
				return err
			}
			return app.runWorkflow(cmd, opts, w)
		},
	}
}
