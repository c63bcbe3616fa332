package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/pdg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
)

var sliceCmd = &cobra.Command{
	Use:   "slice <file> --line N [--backward|--forward] [--var NAME] [--json]",
	Short: "Perform backward or forward slice analysis on a function",
	Long: `Follows dependence edges from the statement at a line.

Backward slice: Find all lines whose statements may affect the target line.
Forward slice: Find all lines whose statements may be affected by the source line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lineNum, err := cmd.Flags().GetInt("line")
		if err != nil {
			return fmt.Errorf("getting line flag: %w", err)
		}
		if lineNum <= 0 {
			return fmt.Errorf("line number must be positive: %d", lineNum)
		}

		forward, _ := cmd.Flags().GetBool("forward")
		varName, _ := cmd.Flags().GetString("var")

		fn, p, err := analyzeFile(args[0])
		if err != nil {
			return err
		}

		var sliceLines []int
		if forward {
			sliceLines = pdg.ForwardSlice(p, lineNum, varName)
		} else {
			sliceLines = pdg.BackwardSlice(p, lineNum, varName)
		}
		if sliceLines == nil {
			sliceLines = []int{}
		}

		direction := "backward"
		if forward {
			direction = "forward"
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			output := struct {
				FunctionName string   `json:"function_name"`
				Line         int      `json:"line"`
				Direction    string   `json:"direction"`
				Variable     string   `json:"variable,omitempty"`
				SliceLines   []int    `json:"slice_lines"`
				Variables    []string `json:"variables"`
			}{
				FunctionName: fn.Signature,
				Line:         lineNum,
				Direction:    direction,
				Variable:     varName,
				SliceLines:   sliceLines,
				Variables:    pdg.Variables(p),
			}
			return writeJSON(cmd.OutOrStdout(), output)
		}

		printSliceInfo(cmd.OutOrStdout(), fn, lineNum, direction, varName, sliceLines)
		return nil
	},
}

func printSliceInfo(w io.Writer, fn *plsql.Function, lineNum int, direction, varName string, sliceLines []int) {
	fmt.Fprintf(w, "=== Slice for function: %s (line %d, %s) ===\n", fn.Signature, lineNum, direction)
	if varName != "" {
		fmt.Fprintf(w, "Variable filter: %s\n", varName)
	}

	fmt.Fprintf(w, "\nSlice lines (%d): ", len(sliceLines))
	if len(sliceLines) == 0 {
		fmt.Fprintln(w, "none")
		return
	}
	fmt.Fprintln(w, formatLineRanges(sliceLines))

	fmt.Fprintln(w, "\n--- Source code with slice lines highlighted ---")
	printSourceWithHighlights(w, fn.Source, sliceLines)
}

func formatLineRanges(lines []int) string {
	if len(lines) == 0 {
		return "none"
	}

	var ranges []string
	start, end := lines[0], lines[0]
	flush := func() {
		if start == end {
			ranges = append(ranges, fmt.Sprintf("%d", start))
		} else {
			ranges = append(ranges, fmt.Sprintf("%d-%d", start, end))
		}
	}
	for _, l := range lines[1:] {
		if l == end+1 {
			end = l
			continue
		}
		flush()
		start, end = l, l
	}
	flush()

	return strings.Join(ranges, ", ")
}

func printSourceWithHighlights(w io.Writer, src string, sliceLines []int) {
	lineSet := make(map[int]bool, len(sliceLines))
	for _, l := range sliceLines {
		lineSet[l] = true
	}
	for i, text := range strings.Split(src, "\n") {
		highlight := "    "
		if lineSet[i+1] {
			highlight = " >>>"
		}
		fmt.Fprintf(w, "%5d:%s %s\n", i+1, highlight, text)
	}
}

func init() {
	sliceCmd.Flags().IntP("line", "l", 0, "Line number to slice from (required)")
	sliceCmd.Flags().BoolP("backward", "b", false, "Backward slice (default)")
	sliceCmd.Flags().BoolP("forward", "f", false, "Forward slice")
	sliceCmd.Flags().StringP("var", "v", "", "Variable name to filter (optional)")
	sliceCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	sliceCmd.MarkFlagsMutuallyExclusive("backward", "forward")

	_ = sliceCmd.MarkFlagRequired("line")

	RootCmd.AddCommand(sliceCmd)
}
