package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"spockctl/internal/endpoint"
	"spockctl/internal/runlog"
	"spockctl/internal/workflow"
)

// clusterOptions carries the flags shared by all cluster workflows.
type clusterOptions struct {
	discoverDSN  string
	ignoreErrors bool
	dryRun       bool
}

func newClusterCommand(app *App) *cobra.Command {
	opts := &clusterOptions{}
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Run cluster-wide replication workflows",
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.discoverDSN, "discover", "",
		"bootstrap DSN; read the node list from the spock.node catalog instead of the config file")
	pf.BoolVar(&opts.ignoreErrors, "ignore-errors", false,
		"record step failures and continue instead of aborting")
	pf.BoolVar(&opts.dryRun, "dry-run", false,
		"print the step plan as YAML without dispatching anything")

	cmd.AddCommand(
		newCrossWireCommand(app, opts),
		newUncrossWireCommand(app, opts),
		newAddNodeCommand(app, opts),
		newRemoveNodeCommand(app, opts),
	)
	return cmd
}

// clusterEndpoints resolves the endpoint set a workflow runs against:
// the live catalog when --discover was given, the config file otherwise.
func (app *App) clusterEndpoints(ctx context.Context, opts *clusterOptions) ([]endpoint.Endpoint, error) {
	if opts.discoverDSN != "" {
		return app.Discover(ctx, opts.discoverDSN)
	}
	return app.Config.Endpoints(), nil
}

// endpointByName picks one endpoint out of eps.
func endpointByName(eps []endpoint.Endpoint, name string) (endpoint.Endpoint, []endpoint.Endpoint, error) {
	rest := make([]endpoint.Endpoint, 0, len(eps))
	var found *endpoint.Endpoint
	for _, ep := range eps {
		if ep.Name == name {
			ep := ep
			found = &ep
			continue
		}
		rest = append(rest, ep)
	}
	if found == nil {
		return endpoint.Endpoint{}, nil, fmt.Errorf("node %q not found among the cluster endpoints", name)
	}
	return *found, rest, nil
}

// runWorkflow executes (or, for --dry-run, prints) a built workflow.
func (app *App) runWorkflow(cmd *cobra.Command, opts *clusterOptions, w *workflow.Workflow) error {
	if opts.ignoreErrors {
		workflow.MarkAllIgnorable(w)
	}
	if opts.dryRun {
		return renderPlan(cmd.OutOrStdout(), w)
	}

	var sink runlog.Sink = runlog.NewConsoleSink(cmd.OutOrStdout(), app.verbosity)
	if app.logFile != "" {
		sink = runlog.Tee{sink, &runlog.SlogSink{Logger: slog.Default()}}
	}

	exec := workflow.NewExecutor(app.Dispatcher, sink)
	if _, err := exec.Run(cmd.Context(), w); err != nil {
		var abort *workflow.AbortError
		if errors.As(err, &abort) {
			app.Printer.Error("%s aborted: %v", w.Operation, abort)
			return NewExitError(1)
		}
		return err
	}
	app.Printer.Success("%s finished (%d steps)", w.Operation, len(w.Steps))
	return nil
}

type planStep struct {
	Step        int    `yaml:"step"`
	Endpoint    string `yaml:"endpoint"`
	Description string `yaml:"description"`
	Command     string `yaml:"command"`
	Ignorable   bool   `yaml:"ignorable,omitempty"`
}

type plan struct {
	Operation string     `yaml:"operation"`
	Steps     []planStep `yaml:"steps"`
}

// renderPlan writes the workflow as YAML, one document per run.
func renderPlan(w io.Writer, wf *workflow.Workflow) error {
	p := plan{Operation: wf.Operation, Steps: make([]planStep, len(wf.Steps))}
	for i, s := range wf.Steps {
		p.Steps[i] = planStep{
			Step:        s.Seq,
			Endpoint:    s.Endpoint.Name,
			Description: s.Description,
			Command:     s.Command,
			Ignorable:   s.Ignorable,
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("render plan: %w", err)
	}
	return enc.Close()
}
