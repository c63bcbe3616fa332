package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/store"
)

var graphsCmd = &cobra.Command{
	Use:   "graphs [id]",
	Short: "Print the result table",
	Long: `Lists the graphs recorded by previous runs. With an id, prints the
flow graph or (--pdg) the dependence graph of that entry as DOT source.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		jsonOutput, _ := cmd.Flags().GetBool("json")

		if len(args) == 1 {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid graph id: %s", args[0])
			}
			e, err := st.Get(id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(w, e)
			}
			if showPDG, _ := cmd.Flags().GetBool("pdg"); showPDG {
				fmt.Fprintln(w, e.PDG)
			} else {
				fmt.Fprintln(w, e.FlowGraph)
			}
			return nil
		}

		entries := st.List()
		if cmd.Flags().Changed("user") {
			user, _ := cmd.Flags().GetUint32("user")
			entries = st.ListFor(user)
		}
		if jsonOutput {
			if entries == nil {
				entries = []store.Entry{}
			}
			return writeJSON(w, entries)
		}

		if len(entries) == 0 {
			fmt.Fprintln(w, "No graphs recorded.")
			return nil
		}
		fmt.Fprintf(w, "%6s  %6s  %6s  %-30s  %s\n", "ID", "USER", "DB", "FUNCTION", "CREATED")
		for _, e := range entries {
			fmt.Fprintf(w, "%6d  %6d  %6d  %-30s  %s\n",
				e.ID(), e.Key.UserID, e.Key.DatabaseID, e.Function, e.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	graphsCmd.Flags().Uint32("user", 0, "Only entries recorded for this user")
	graphsCmd.Flags().Bool("pdg", false, "Print the dependence graph instead of the flow graph")
	graphsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(graphsCmd)
}
