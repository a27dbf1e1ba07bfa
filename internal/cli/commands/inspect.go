package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vireo-lang/vireo/internal/compiler/diagnostics"
	"github.com/vireo-lang/vireo/internal/compiler/pipeline"
)

// NewInspectCommand creates the inspect command
func NewInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [manifest]",
		Short: "Show the assembled pipeline of every route",
		Long: `Resolve the blueprint and print each route's pipeline: the stage
sequence, the call graph of every stage, and the continuation state threaded
between stages.`,
		Example: `  # Inspect the manifest configured in vireo.yml
  vireoc inspect

  # Inspect a specific manifest
  vireoc inspect blueprints/api.yml`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInspect,
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	res, _, err := compileFromArgs(cmd, args)
	if err != nil {
		return err
	}
	if !res.Ok() {
		diagnostics.RenderTerminal(out, res.Diagnostics)
		return fmt.Errorf("blueprint check failed")
	}

	for i, p := range res.Pipelines {
		if i > 0 {
			fmt.Fprintln(out)
		}
		printPipeline(cmd, p)
	}
	return nil
}

func printPipeline(cmd *cobra.Command, p *pipeline.Pipeline) {
	out := cmd.OutOrStdout()

	routeColor := color.New(color.FgGreen, color.Bold)
	stageColor := color.New(color.FgCyan, color.Bold)
	dimColor := color.New(color.Faint)

	routeColor.Fprintf(out, "%s %s\n", p.Method, p.Pattern)
	for _, st := range p.Stages {
		stageColor.Fprintf(out, "  %s\n", st.Name)

		for _, n := range st.Graph.Nodes {
			fmt.Fprintf(out, "    %s", n.Name)
			if n.Provided {
				dimColor.Fprint(out, " (from state)")
			}
			if n.Branch != nil {
				dimColor.Fprint(out, " (fallible)")
			}
			fmt.Fprintln(out)
			for _, dep := range n.Deps {
				if dep.Node < 0 {
					continue
				}
				dimColor.Fprintf(out, "      <- %s (%s)\n", st.Graph.Nodes[dep.Node].Name, dep.Mode)
			}
		}

		if st.State != nil {
			fmt.Fprintf(out, "    state %s\n", st.State.Type)
			for _, f := range st.State.Fields {
				dimColor.Fprintf(out, "      %s: %s\n", f.Name, f.Type)
			}
		}
	}
}
