package commands

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plugin"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/store"
)

// RunOutput summarizes a batch run
type RunOutput struct {
	Calls   int           `json:"calls"`
	Stored  []store.Entry `json:"stored"`
	Failed  []string      `json:"failed,omitempty"`
	Tracked int           `json:"tracked"`
}

var runCmd = &cobra.Command{
	Use:   "run <file|dir>...",
	Short: "Analyze functions as calls and record them in the result table",
	Long: `Treats every function file as one call: builds its graphs, stores them
in the result table and persists the table to store_path. Directories are
expanded to the .sql files they contain. Files are analyzed concurrently,
bounded by the workers setting.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandSQLFiles(args)
		if err != nil {
			return err
		}
		user, _ := cmd.Flags().GetUint32("user")
		db, _ := cmd.Flags().GetUint32("db")
		calls, _ := cmd.Flags().GetInt("calls")
		if calls <= 0 {
			return fmt.Errorf("calls must be positive: %d", calls)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		p, err := newPlugin(st)
		if err != nil {
			return err
		}

		out := runCalls(p, files, &plsql.ExecState{UserID: user, DatabaseID: db}, calls)
		if err := st.SaveFile(appConfig.StorePath); err != nil {
			return fmt.Errorf("saving result table: %w", err)
		}
		out.Tracked = st.Len()

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
		} else {
			w := cmd.OutOrStdout()
			for _, e := range out.Stored {
				fmt.Fprintf(w, "%6d  %-30s  WR %d  RW %d  WW %d\n",
					e.ID(), e.Function, e.Dependences.WR, e.Dependences.RW, e.Dependences.WW)
			}
			fmt.Fprintf(w, "\n%d calls, %d stored, %d failed, %d tracked in %s\n",
				out.Calls, len(out.Stored), len(out.Failed), out.Tracked, appConfig.StorePath)
		}

		if len(out.Failed) > 0 {
			return fmt.Errorf("%d of %d calls failed", len(out.Failed), out.Calls)
		}
		return nil
	},
}

// runCalls calls every file the given number of times. A failing call
// does not stop the others.
func runCalls(p *plugin.Plugin, files []string, estate *plsql.ExecState, calls int) *RunOutput {
	out := &RunOutput{Calls: len(files) * calls}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(appConfig.Workers)
	for _, file := range files {
		for range calls {
			g.Go(func() error {
				fn, err := readFunction(file)
				var e store.Entry
				if err == nil {
					e, err = p.Call(estate, fn)
				}

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					out.Failed = append(out.Failed, fmt.Sprintf("%s: %v", file, err))
					return nil
				}
				out.Stored = append(out.Stored, e)
				return nil
			})
		}
	}
	_ = g.Wait()

	slices.SortFunc(out.Stored, func(a, b store.Entry) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// expandSQLFiles replaces directories by the .sql files below them.
func expandSQLFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".sql") {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", path, err)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .sql files found")
	}
	return files, nil
}

func init() {
	runCmd.Flags().Uint32("user", 0, "User id recorded with each call")
	runCmd.Flags().Uint32("db", 0, "Database id recorded with each call")
	runCmd.Flags().Int("calls", 1, "Number of calls per function")
	runCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(runCmd)
}
