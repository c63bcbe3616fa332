// Package commands provides the CLI commands for the plsqlgraph tool.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KLIEBHAN/pg-plsql-graphs/internal/config"
	"github.com/KLIEBHAN/pg-plsql-graphs/internal/log"
)

var (
	appConfig *config.Config
	logger    log.Logger = log.Default()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "plsqlgraph",
	Short: "plsqlgraph - Control flow and dependence graphs of PL/pgSQL functions",
	Long: `plsqlgraph builds control flow graphs and program dependence graphs of
PL/pgSQL functions and answers conflict queries between their statements.

Commands:
  cfg         Show the control flow graph of a function
  pdg         Show the dependence graph of a function
  dot         Render a graph in Graphviz DOT format
  conflict    Check whether one statement can affect another
  slice       Backward or forward slice over dependence edges
  run         Analyze functions as calls and record them in the result table
  graphs      Print the result table
  watch       Re-run a function whenever its file changes
  serve       Serve the result table over HTTP
  init        Create a configuration file interactively

Use "plsqlgraph [command] --help" for more information about a command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		var err error
		if configPath != "" {
			appConfig, err = config.LoadFromFile(configPath)
		} else {
			appConfig, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if cmd.Flags().Changed("verbose") {
			appConfig.Verbose, _ = cmd.Flags().GetBool("verbose")
		}
		if cmd.Flags().Changed("log-level") {
			appConfig.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		level, err := appConfig.Level()
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		logger = log.New(log.LoggerConfig{
			Level:      level,
			JSONOutput: appConfig.LogJSON,
			Output:     cmd.ErrOrStderr(),
		})
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file path (default: layered lookup)")
	RootCmd.PersistentFlags().Bool("verbose", false, "Verbose logging")
	RootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (default: log_level)")
}
