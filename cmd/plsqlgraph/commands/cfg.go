package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/cfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/label"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/pdg"
)

// cfgCmd represents the cfg command
var cfgCmd = &cobra.Command{
	Use:   "cfg <file>",
	Short: "Show the control flow graph of a function",
	Long: `Builds the control flow graph of the PL/pgSQL function in a file.
Outputs nodes, edges, exit nodes and cyclomatic complexity.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fn, p, err := analyzeFile(args[0])
		if err != nil {
			return err
		}
		info := cfg.Info(p.CFG, fn.Signature)

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeJSON(cmd.OutOrStdout(), info)
		}
		printCFGInfo(cmd.OutOrStdout(), info, p)
		return nil
	},
}

// printCFGInfo prints CFG information in human-readable format.
func printCFGInfo(w io.Writer, info *cfg.CFGInfo, p *pdg.PDG) {
	fmt.Fprintf(w, "=== CFG for function: %s ===\n", info.FunctionName)
	fmt.Fprintf(w, "Cyclomatic Complexity: %d\n", info.CyclomaticComplexity)
	fmt.Fprintf(w, "Exit Nodes: %v\n", info.ExitNodeIDs)
	if len(info.UnsupportedLines) > 0 {
		fmt.Fprintf(w, "Unsupported Lines: %v\n", info.UnsupportedLines)
	}

	fmt.Fprintf(w, "\nNodes (%d):\n", len(info.Nodes))
	for _, n := range info.Nodes {
		l := label.Node(p.Graph(), p.Function, graph.NodeID(n.ID))
		if n.Line > 0 {
			fmt.Fprintf(w, "  %d (%s, line %d) %s\n", n.ID, n.Kind, n.Line, l)
		} else {
			fmt.Fprintf(w, "  %d %s\n", n.ID, l)
		}
	}

	fmt.Fprintf(w, "\nEdges (%d):\n", len(info.Edges))
	for _, e := range info.Edges {
		fmt.Fprintf(w, "  %d --%s--> %d\n", e.SourceID, e.EdgeType, e.TargetID)
	}
}

func init() {
	cfgCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(cfgCmd)
}
