// Package main implements the plsqlgraph CLI.
// It builds control flow and dependence graphs of PL/pgSQL functions,
// records them in a result table and serves that table over HTTP.
package main

import (
	"os"

	"github.com/KLIEBHAN/pg-plsql-graphs/cmd/plsqlgraph/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.SetVersionTemplate(`plsqlgraph version {{.Version}}
`)
	commands.RootCmd.Version = version

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
