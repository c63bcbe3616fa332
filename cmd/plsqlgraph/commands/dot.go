package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/dot"
)

var dotCmd = &cobra.Command{
	Use:   "dot <file> [--kind flow|pdg]",
	Short: "Render a graph in Graphviz DOT format",
	Long: `Renders the control flow graph (--kind flow) or the dependence graph
(--kind pdg) of the function in a file as Graphviz DOT source.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		if kind != "flow" && kind != "pdg" {
			return fmt.Errorf("unknown graph kind: %s (use 'flow' or 'pdg')", kind)
		}

		_, p, err := analyzeFile(args[0])
		if err != nil {
			return err
		}

		sameLevel := appConfig.SameLevel
		if cmd.Flags().Changed("same-level") {
			sameLevel, _ = cmd.Flags().GetBool("same-level")
		}

		out := dot.Flow(p.Graph())
		if kind == "pdg" {
			out = dot.Dependence(p.Graph(), sameLevel)
		}
		if len(out) > appConfig.MaxDOTBytes {
			logger.Warn("diagram exceeds max_dot_bytes", "bytes", len(out), "max", appConfig.MaxDOTBytes)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	dotCmd.Flags().StringP("kind", "k", "flow", "Graph to render (flow or pdg)")
	dotCmd.Flags().Bool("same-level", true, "Put all nodes of the dependence graph on one rank")
	RootCmd.AddCommand(dotCmd)
}
