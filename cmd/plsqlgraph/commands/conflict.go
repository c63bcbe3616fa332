package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/label"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/pdg"
)

// ConflictOutput is the result of the conflict command
type ConflictOutput struct {
	FunctionName string `json:"function_name"`
	LineA        int    `json:"line_a"`
	LineB        int    `json:"line_b"`
	StatementA   string `json:"statement_a"`
	StatementB   string `json:"statement_b"`
	Symmetric    bool   `json:"symmetric"`
	Conflict     bool   `json:"conflict"`
}

var conflictCmd = &cobra.Command{
	Use:   "conflict <file> <lineA> <lineB> [--symmetric]",
	Short: "Check whether one statement can affect another",
	Long: `Reports whether a dependence edge leads from the statement at lineA to
the statement at lineB. With --symmetric both directions are checked.
Statements the graph does not contain are reported as conflicting.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		fn, p, err := analyzeFile(args[0])
		if err != nil {
			return err
		}
		a, err := statementAt(fn, args[1])
		if err != nil {
			return err
		}
		b, err := statementAt(fn, args[2])
		if err != nil {
			return err
		}

		symmetric := appConfig.Symmetric
		if cmd.Flags().Changed("symmetric") {
			symmetric, _ = cmd.Flags().GetBool("symmetric")
		}

		out := ConflictOutput{
			FunctionName: fn.Signature,
			LineA:        a.Line(),
			LineB:        b.Line(),
			StatementA:   label.Statement(fn, a),
			StatementB:   label.Statement(fn, b),
			Symmetric:    symmetric,
		}
		if symmetric {
			out.Conflict = pdg.SymmetricConflict(a, b, p.Graph())
		} else {
			out.Conflict = pdg.Conflict(a, b, p.Graph())
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeJSON(cmd.OutOrStdout(), out)
		}
		verdict := "no conflict"
		if out.Conflict {
			verdict = "conflict"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d: %s\n%d: %s\n=> %s\n",
			out.LineA, out.StatementA, out.LineB, out.StatementB, verdict)
		return nil
	},
}

func init() {
	conflictCmd.Flags().BoolP("symmetric", "s", false, "Check both directions")
	conflictCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(conflictCmd)
}
