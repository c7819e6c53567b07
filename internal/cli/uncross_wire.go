package cli

import (
	"github.com/spf13/cobra"

	"spockctl/internal/workflow"
)

func newUncrossWireCommand(app *App, opts *clusterOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "uncross-wire",
		Short: "Tear down the full replication mesh",
		Long: `Drop every pairwise subscription, then each Spock node. All steps
are best-effort so a partially wired cluster can still be torn down.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eps, err := app.clusterEndpoints(cmd.Context(), opts)
			if err != nil {
				return err
			}
			w, err := workflow.UncrossWireAll(eps)
			if err != nil {
				return err
			}
			return app.runWorkflow(cmd, opts, w)
		},
	}
}
