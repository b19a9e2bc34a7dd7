package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/dependencies"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

func newDepsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Analyse references between registered schemas",
	}
	cmd.AddCommand(
		newDepsGraphCommand(a),
		newDepsImpactCommand(a),
		newDepsCyclesCommand(a),
		newDepsOrderCommand(a),
	)
	return cmd
}

// loadGraph builds the reference graph of every registered version.
func (a *app) loadGraph(ctx context.Context) (*dependencies.DependencyGraph, error) {
	store, err := a.openHistory(ctx)
	if err != nil {
		return nil, err
	}
	subjects, err := store.Subjects(ctx)
	if err != nil {
		return nil, err
	}

	var docs []*schema.Document
	for _, subject := range subjects {
		versions, err := store.History(ctx, subject)
		if err != nil {
			return nil, err
		}
		docs = append(docs, versions...)
	}
	return dependencies.BuildFromDocuments(docs, dependencies.WithLogger(a.logger))
}

func newDepsGraphCommand(a *app) *cobra.Command {
	var (
		output string
		node   string
		depth  int
		both   bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the reference graph as DOT or Cytoscape.js JSON",
		Long: `Export the reference graph of all registered schemas.

With --node, the Cytoscape.js output is centred on that schema and limited to
its dependencies (and dependents with --dependents).

Example:
  schemacompat deps graph --output dot | dot -Tsvg > schemas.svg
  schemacompat deps graph --output json --node orders-value@2.0.0 --depth 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := a.loadGraph(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch output {
			case "dot":
				fmt.Fprint(w, g.ToDOT())
				return nil
			case "json":
				if node == "" {
					return outputJSON(w, g.ToCytoscape())
				}
				id, err := dependencies.ParseNodeID(node)
				if err != nil {
					return err
				}
				opts := dependencies.DefaultViewOptions()
				opts.MaxDepth = depth
				if both {
					opts.Direction = dependencies.DirectionBoth
				}
				return outputJSON(w, g.CytoscapeView(id, opts))
			default:
				return fmt.Errorf("unknown output format: %s", output)
			}
		},
	}

	cmd.Flags().StringVar(&output, "output", "dot", "Output format: dot, json")
	cmd.Flags().StringVar(&node, "node", "", "Centre a JSON view on subject@version")
	cmd.Flags().IntVar(&depth, "depth", -1, "Maximum dependency depth of a centred view; negative is unlimited")
	cmd.Flags().BoolVar(&both, "dependents", false, "Include direct dependents in a centred view")
	return cmd
}

func newDepsImpactCommand(a *app) *cobra.Command {
	var (
		flags  checkFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "impact <subject@version>",
		Short: "Show which schemas a change affects and in what order to migrate them",
		Long: `Analyse the impact of changing one schema: its direct and transitive
dependents, a risk level, and a migration order.

With --schema, the candidate is checked against the subject's history first and
its breaking violations are included in the guide.

Example:
  schemacompat deps impact money-value@1.0.0
  schemacompat deps impact money-value@1.0.0 --schema money-v2.proto --mode BACKWARD`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			node, err := dependencies.ParseNodeID(args[0])
			if err != nil {
				return err
			}
			g, err := a.loadGraph(ctx)
			if err != nil {
				return err
			}

			var violations []compatibility.Violation
			if flags.input.path != "" {
				mode, err := a.resolveMode(flags.mode)
				if err != nil {
					return err
				}
				if flags.input.subject == "" {
					flags.input.subject = node.Subject
				}
				candidate, err := flags.input.load()
				if err != nil {
					return err
				}
				store, err := a.openHistory(ctx)
				if err != nil {
					return err
				}
				result, err := a.check(ctx, candidate, mode, store)
				if err != nil {
					return err
				}
				violations = result.Violations
			}

			analysis := g.AnalyzeImpact(node, violations)
			if output == "json" {
				return outputJSON(cmd.OutOrStdout(), analysis)
			}
			fmt.Fprint(cmd.OutOrStdout(), analysis.MigrationGuide())
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.input.path, "schema", "", "Candidate schema file for the change")
	cmd.Flags().StringVar(&flags.input.format, "format", "", "Schema format (default: from file extension)")
	cmd.Flags().StringVar(&flags.input.version, "version", "", "Version of the candidate")
	cmd.Flags().StringArrayVar(&flags.input.refs, "ref", nil, "Referenced schema as name=path[#subject@version] (repeatable)")
	cmd.Flags().StringVar(&flags.mode, "mode", "", "Compatibility mode (default: from config)")
	cmd.Flags().StringVar(&output, "output", "markdown", "Output format: markdown, json")
	return cmd
}

func newDepsCyclesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cycles",
		Short: "List reference cycles between registered schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := a.loadGraph(cmd.Context())
			if err != nil {
				return err
			}

			cycles := g.DetectCycles()
			w := cmd.OutOrStdout()
			if len(cycles) == 0 {
				writeLine(w, "No reference cycles")
				return nil
			}
			for _, cycle := range cycles {
				writeLine(w, "%s", joinCycle(cycle))
			}
			return &dependencies.CycleError{Cycles: cycles}
		},
	}
}

func newDepsOrderCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "order [subject@version...]",
		Short: "Print a migration order, dependencies first",
		Long: `Print the given schemas, or every registered schema when none are given,
ordered so that each appears after everything it references.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.loadGraph(cmd.Context())
			if err != nil {
				return err
			}

			nodes := g.Nodes()
			if len(args) > 0 {
				nodes = make([]dependencies.NodeID, 0, len(args))
				for _, arg := range args {
					id, err := dependencies.ParseNodeID(arg)
					if err != nil {
						return err
					}
					nodes = append(nodes, id)
				}
			}

			order, err := g.MigrationPath(nodes)
			var cycleErr *dependencies.CycleError
			if errors.As(err, &cycleErr) {
				for _, cycle := range cycleErr.Cycles {
					writeLine(cmd.ErrOrStderr(), "cycle: %s", joinCycle(cycle))
				}
			}
			if err != nil {
				return err
			}
			for i, id := range order {
				writeLine(cmd.OutOrStdout(), "%d. %s", i+1, id)
			}
			return nil
		},
	}
}

func joinCycle(cycle []dependencies.NodeID) string {
	parts := make([]string, 0, len(cycle)+1)
	for _, id := range cycle {
		parts = append(parts, id.String())
	}
	if len(cycle) > 0 {
		parts = append(parts, cycle[0].String())
	}
	return strings.Join(parts, " -> ")
}
