package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>...",
	Short: "Re-run a function whenever its file changes",
	Long: `Calls every given function once, then again after each change to its
file, and persists the result table after every call.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debounce, _ := cmd.Flags().GetDuration("debounce")
		user, _ := cmd.Flags().GetUint32("user")
		estate := &plsql.ExecState{UserID: user}

		st, err := openStore()
		if err != nil {
			return err
		}
		p, err := newPlugin(st)
		if err != nil {
			return err
		}

		call := func(file string) {
			fn, err := readFunction(file)
			if err != nil {
				logger.Error("reading function failed", "file", file, "error", err)
				return
			}
			e, err := p.Call(estate, fn)
			if err != nil {
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: stored graph %d (WR %d, RW %d, WW %d)\n",
				file, e.ID(), e.Dependences.WR, e.Dependences.RW, e.Dependences.WW)
			if err := st.SaveFile(appConfig.StorePath); err != nil {
				logger.Error("saving result table failed", "error", err)
			}
		}

		for _, file := range args {
			call(file)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watchFiles(ctx, args, debounce, call)
	},
}

// watchFiles calls onChange for every file in paths that was written,
// created or renamed into place, once per debounce window. Parent
// directories are watched so that editors replacing the file are seen.
func watchFiles(ctx context.Context, paths []string, debounce time.Duration, onChange func(string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	logger.Info("watching for changes", "files", len(watched))

	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !watched[name] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			pending[name] = true
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		case <-timerC:
			timer, timerC = nil, nil
			for name := range pending {
				if _, err := os.Stat(name); err == nil {
					onChange(name)
				}
			}
			clear(pending)
		}
	}
}

func init() {
	watchCmd.Flags().Duration("debounce", 200*time.Millisecond, "Wait this long after a change before re-running")
	watchCmd.Flags().Uint32("user", 0, "User id recorded with each call")
	RootCmd.AddCommand(watchCmd)
}
