package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KLIEBHAN/pg-plsql-graphs/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve [--addr host:port]",
	Short: "Serve the result table over HTTP",
	Long: `Starts an HTTP server on listen_addr. Functions posted to /analyze are
analyzed as calls; their graphs are listed under /graphs. The result table
is loaded from store_path on start and saved back on shutdown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := appConfig.ListenAddr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		p, err := newPlugin(st)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		serveErr := server.NewApp(p, logger).ListenAndServe(ctx, addr)
		if err := st.SaveFile(appConfig.StorePath); err != nil {
			logger.Error("saving result table failed", "error", err)
		}
		return serveErr
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default: listen_addr)")
	RootCmd.AddCommand(serveCmd)
}
